package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Tick struct {
	// Interval is the tick generator cadence.
	Interval time.Duration
	// StartPrice seeds the random walk for symbols seen the first time.
	StartPrice decimal.Decimal
	// Volume is the fixed nominal volume stamped on every tick.
	Volume decimal.Decimal
}

type Node struct {
	// Symbols the node journals and streams by default.
	Symbols []string
	// APIAddr is the REST/WebSocket listen address.
	APIAddr string
	// JournalPath is the pebble trade-journal directory. Empty disables
	// journaling.
	JournalPath string
	// LogFile tees structured logs to a file. Empty logs to stdout only.
	LogFile string
}

type Config struct {
	Tick Tick
	Node Node
}

func Default() Config {
	return Config{
		Tick: Tick{
			Interval:   100 * time.Millisecond,
			StartPrice: decimal.NewFromInt(100),
			Volume:     decimal.NewFromInt(100),
		},
		Node: Node{
			Symbols:     []string{"AAPL", "GOOGL", "MSFT"},
			APIAddr:     ":8080",
			JournalPath: "data/journal",
			LogFile:     "",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if ms := os.Getenv("TICK_INTERVAL_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			cfg.Tick.Interval = time.Duration(v) * time.Millisecond
		}
	}
	if p := os.Getenv("TICK_START_PRICE"); p != "" {
		if v, err := decimal.NewFromString(p); err == nil && v.IsPositive() {
			cfg.Tick.StartPrice = v
		}
	}
	if vol := os.Getenv("TICK_VOLUME"); vol != "" {
		if v, err := decimal.NewFromString(vol); err == nil && v.IsPositive() {
			cfg.Tick.Volume = v
		}
	}
	if syms := os.Getenv("SYMBOLS"); syms != "" {
		// Example: "AAPL,GOOGL,MSFT"
		var out []string
		for _, s := range strings.Split(syms, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			cfg.Node.Symbols = out
		}
	}
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.JournalPath = getEnv("JOURNAL_PATH", cfg.Node.JournalPath)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
