package engine

// sideQueue implements heap.Interface over resting orders for one side
// of a book. Ordering is (price, sequence): best price on top, and at
// equal prices the lower submission sequence wins, which is what gives
// the book deterministic price-time priority. A price-only comparator
// does not guarantee that.
//
// Use container/heap to manipulate it (Init, Push, Pop, Fix, Remove).
type sideQueue struct {
	orders []*Order
	// index of each order id within orders, maintained by Swap so
	// cancellation can heap.Remove in O(log n) after an O(1) lookup
	pos map[string]int
	max bool // true for bids (highest price on top), false for asks
}

func newSideQueue(max bool) *sideQueue {
	return &sideQueue{pos: make(map[string]int), max: max}
}

func (q *sideQueue) Len() int { return len(q.orders) }

func (q *sideQueue) Less(i, j int) bool {
	c := q.orders[i].Price.Cmp(q.orders[j].Price)
	if c == 0 {
		return q.orders[i].Sequence < q.orders[j].Sequence
	}
	if q.max {
		return c > 0
	}
	return c < 0
}

func (q *sideQueue) Swap(i, j int) {
	q.orders[i], q.orders[j] = q.orders[j], q.orders[i]
	q.pos[q.orders[i].ID] = i
	q.pos[q.orders[j].ID] = j
}

func (q *sideQueue) Push(x interface{}) {
	o := x.(*Order)
	q.pos[o.ID] = len(q.orders)
	q.orders = append(q.orders, o)
}

func (q *sideQueue) Pop() interface{} {
	old := q.orders
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	q.orders = old[:n-1]
	delete(q.pos, o.ID)
	return o
}

// peek returns the top order without removing it, or nil when empty.
func (q *sideQueue) peek() *Order {
	if len(q.orders) == 0 {
		return nil
	}
	return q.orders[0]
}
