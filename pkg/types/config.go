package types

import (
	"errors"
	"time"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultMaxConcurrency = 3
	DefaultMaxRetry       = 3
	DefaultBaseRetryDelay = 5 * time.Second
	DefaultDrainTimeout   = 30 * time.Second
	DefaultSyncInterval   = 5 * time.Minute
)

// Config validation errors.
var (
	ErrConcurrencyInvalid  = errors.New("max concurrency must be positive")
	ErrMaxRetryInvalid     = errors.New("max retry must not be negative")
	ErrBaseDelayInvalid    = errors.New("base retry delay must be positive")
	ErrPriorityUnknownKind = errors.New("priority policy references unknown kind")
)

// Config holds the tunables for the queue, processor, and sync engine.
type Config struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxConcurrency bounds how many distinct entities the processor works
	// on in parallel.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`

	// MaxRetry is the number of retries before a retryable failure becomes
	// terminal.
	MaxRetry int `json:"max_retry" yaml:"max_retry"`

	// BaseRetryDelay seeds the backoff schedule: base, 2*base, 4*base, ...
	BaseRetryDelay time.Duration `json:"base_retry_delay" yaml:"base_retry_delay"`

	// DrainTimeout bounds how long a full sync waits for the queue to drain
	// before proceeding anyway.
	DrainTimeout time.Duration `json:"drain_timeout" yaml:"drain_timeout"`

	// SyncInterval is the period of timer-triggered incremental syncs.
	SyncInterval time.Duration `json:"sync_interval" yaml:"sync_interval"`

	// PriorityPolicy maps operation kinds to dequeue priorities (higher
	// first). Kinds absent from the map use the defaults. The ordering is a
	// policy choice, not a correctness requirement.
	PriorityPolicy map[string]int `json:"priority_policy" yaml:"priority_policy"`
}

// defaultPriorities orders deletes ahead of updates ahead of creates, with
// folder operations one notch below their note counterparts.
var defaultPriorities = map[string]int{
	KindDeleteNote:   30,
	KindDeleteFolder: 29,
	KindUpdateNote:   20,
	KindRenameFolder: 19,
	KindCreateNote:   10,
	KindUploadAsset:  10,
	KindCreateFolder: 9,
}

// WithDefaults returns a copy of the config with zero-valued fields replaced
// by defaults.
func (c Config) WithDefaults() Config {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxRetry == 0 {
		c.MaxRetry = DefaultMaxRetry
	}
	if c.BaseRetryDelay == 0 {
		c.BaseRetryDelay = DefaultBaseRetryDelay
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	return c
}

// Validate checks that the config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return ErrConcurrencyInvalid
	}
	if c.MaxRetry < 0 {
		return ErrMaxRetryInvalid
	}
	if c.BaseRetryDelay < 0 {
		return ErrBaseDelayInvalid
	}
	for kind := range c.PriorityPolicy {
		if !validKinds[kind] {
			return ErrPriorityUnknownKind
		}
	}
	return nil
}

// Priority returns the dequeue priority for a kind under this config's
// policy, falling back to the default ordering.
func (c Config) Priority(kind string) int {
	if p, ok := c.PriorityPolicy[kind]; ok {
		return p
	}
	return defaultPriorities[kind]
}
