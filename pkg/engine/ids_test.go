package engine

import (
	"sync"
	"testing"
)

func TestNewID_Format(t *testing.T) {
	id := NewID()
	if len(id) != 36 {
		t.Fatalf("len(%q) = %d, want 36", id, len(id))
	}
	for i, c := range id {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				t.Errorf("id[%d] = %q, want '-'", i, c)
			}
		default:
			if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
				t.Errorf("id[%d] = %q, want lowercase hex", i, c)
			}
		}
	}
}

func TestNewID_UniqueUnderConcurrency(t *testing.T) {
	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, NewID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if seen[id] {
					t.Errorf("duplicate id %q", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}
