package ethsync

import "time"

const (
	MinTickerDuration    = 100 * time.Millisecond
	DefaultMaxBlockRange = 1000
)

type Config struct {
	// First block to scan when no checkpoint is stored. A negative value
	// starts from the blocks mined after the monitor comes up.
	StartBlock int64

	// Capacity of the channel between the log listener and the forwarder
	ChannelSize int

	// Interval of eth_getLogs polling when the node can't push logs
	PollInterval time.Duration

	// Bounds of the exponential backoff between two subscription attempts
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Largest [from, to] span of a single eth_getLogs call. Nodes reject
	// wider ranges.
	MaxBlockRange uint64

	// Blocks to wait on top of an event's block before forwarding it. A
	// non zero value implies polling, pushed logs are always at the head.
	Confirmations uint64

	// Poll even if the node supports subscriptions
	DisableSubscription bool
}

func DefaultConfig() *Config {
	return &Config{
		StartBlock:   -1,
		ChannelSize:  256,
		PollInterval: 2 * time.Second,
		MinBackoff:   500 * time.Millisecond,
		MaxBackoff:   30 * time.Second,

		MaxBlockRange: DefaultMaxBlockRange,
	}
}

func (cfg *Config) normalize() {
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = 1
	}
	if cfg.PollInterval < MinTickerDuration {
		cfg.PollInterval = MinTickerDuration
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = MinTickerDuration
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = DefaultMaxBlockRange
	}
}
