package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Node identity
	NodeID         string // this node's address on the message bus
	OwnerPrincipal string // principal of the user this node belongs to

	// Database configuration
	DatabaseURL string

	// Message bus configuration
	NATSURL         string
	NodeCallTimeout time.Duration // request timeout for calls to peer nodes

	// Betting configuration
	StartingAirdrop int64         // tokens minted for a new node owner
	SlotDuration    time.Duration // length of one betting slot
	RoomCapacity    int           // max bettors per room before a new room opens
	CommissionPct   int64         // creator commission, percent of a decided room's pot

	// Ledger history retention
	HistoryTruncateThreshold int // trim once retained events exceed this
	HistoryRetainCount       int // events kept after a trim

	// Background workers
	SweepInterval      time.Duration // safety re-enqueue period for slot timers
	ResolveGracePeriod time.Duration // how long after slot close before polling for a missing outcome

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		NodeID:         os.Getenv("NODE_ID"),
		OwnerPrincipal: os.Getenv("OWNER_PRINCIPAL"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		NATSURL:         os.Getenv("NATS_URL"),
		NodeCallTimeout: 10 * time.Second,

		// Betting defaults
		StartingAirdrop: 1000,
		SlotDuration:    time.Hour,
		RoomCapacity:    100,
		CommissionPct:   10,

		// Retention defaults
		HistoryTruncateThreshold: 1500,
		HistoryRetainCount:       1000,

		// Worker defaults
		SweepInterval:      5 * time.Minute,
		ResolveGracePeriod: 15 * time.Minute,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if airdrop := os.Getenv("STARTING_AIRDROP"); airdrop != "" {
		if parsed, err := strconv.ParseInt(airdrop, 10, 64); err == nil {
			config.StartingAirdrop = parsed
		}
	}
	if dur := os.Getenv("SLOT_DURATION"); dur != "" {
		if parsed, err := time.ParseDuration(dur); err == nil {
			config.SlotDuration = parsed
		}
	}
	if capacity := os.Getenv("ROOM_CAPACITY"); capacity != "" {
		if parsed, err := strconv.Atoi(capacity); err == nil {
			config.RoomCapacity = parsed
		}
	}
	if pct := os.Getenv("COMMISSION_PCT"); pct != "" {
		if parsed, err := strconv.ParseInt(pct, 10, 64); err == nil {
			config.CommissionPct = parsed
		}
	}
	if timeout := os.Getenv("NODE_CALL_TIMEOUT"); timeout != "" {
		if parsed, err := time.ParseDuration(timeout); err == nil {
			config.NodeCallTimeout = parsed
		}
	}
	if interval := os.Getenv("SWEEP_INTERVAL"); interval != "" {
		if parsed, err := time.ParseDuration(interval); err == nil {
			config.SweepInterval = parsed
		}
	}
	if grace := os.Getenv("RESOLVE_GRACE_PERIOD"); grace != "" {
		if parsed, err := time.ParseDuration(grace); err == nil {
			config.ResolveGracePeriod = parsed
		}
	}
	if threshold := os.Getenv("HISTORY_TRUNCATE_THRESHOLD"); threshold != "" {
		if parsed, err := strconv.Atoi(threshold); err == nil {
			config.HistoryTruncateThreshold = parsed
		}
	}
	if retain := os.Getenv("HISTORY_RETAIN_COUNT"); retain != "" {
		if parsed, err := strconv.Atoi(retain); err == nil {
			config.HistoryRetainCount = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.NodeID == "" {
			return nil, fmt.Errorf("NODE_ID is required")
		}
		if config.OwnerPrincipal == "" {
			return nil, fmt.Errorf("OWNER_PRINCIPAL is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.NATSURL == "" {
			return nil, fmt.Errorf("NATS_URL is required")
		}
	}

	return config, nil
}
