package persistence

import (
	"fmt"
	"time"

	"github.com/asaidimu/go-n1ql/core/query"
)

// UpdateConcurrency selects how UpdateByID protects its read-modify-write.
type UpdateConcurrency string

const (
	// Optimistic re-reads and retries on version conflicts.
	Optimistic UpdateConcurrency = "optimistic"
	// Pessimistic locks the document before reading it.
	Pessimistic UpdateConcurrency = "pessimistic"
)

// Config holds the settings of one connection.
type Config struct {
	Identity string `mapstructure:"identity"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Bucket is the namespace every collection of the connection lives in.
	Bucket         string `mapstructure:"bucket"`
	BucketPassword string `mapstructure:"bucketPassword"`

	UpdateConcurrency    UpdateConcurrency `mapstructure:"updateConcurrency"`
	MaxOptimisticRetries int               `mapstructure:"maxOptimisticRetries"`
	// LockTime bounds pessimistic locks; the store caps it at 30s.
	LockTime    time.Duration `mapstructure:"lockTime"`
	PersistTo   uint          `mapstructure:"persistTo"`
	ReplicateTo uint          `mapstructure:"replicateTo"`

	// Defaults merged into every operation's options.
	Consistency   query.ConsistencyLevel `mapstructure:"consistency"`
	CaseSensitive bool                   `mapstructure:"caseSensitive"`
	DoNotReturn   bool                   `mapstructure:"doNotReturn"`
	StableOrder   bool                   `mapstructure:"stableOrder"`
	// ReturnFormat applies when an operation's options leave it empty. It is
	// the only return format Create and UpdateByID see.
	ReturnFormat query.ReturnFormat `mapstructure:"returnFormat"`

	// CreateConcurrency bounds the workers used by CreateEach.
	CreateConcurrency int `mapstructure:"createConcurrency"`
	// ValidateWrites checks documents against their schema before writing.
	ValidateWrites bool `mapstructure:"validateWrites"`
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	return Config{
		Host:                 "127.0.0.1",
		Port:                 8091,
		Bucket:               "default",
		UpdateConcurrency:    Optimistic,
		MaxOptimisticRetries: 3,
		LockTime:             15 * time.Second,
		PersistTo:            1,
		ReplicateTo:          0,
		Consistency:          query.ConsistencyNotBounded,
		ReturnFormat:         query.ReturnFull,
		CreateConcurrency:    8,
	}
}

// Validate checks the configuration once, when the connection is registered.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}
	switch c.UpdateConcurrency {
	case Optimistic, Pessimistic:
	default:
		return fmt.Errorf("unknown update concurrency %q", c.UpdateConcurrency)
	}
	if c.MaxOptimisticRetries < 0 {
		return fmt.Errorf("maxOptimisticRetries cannot be negative")
	}
	if c.LockTime <= 0 || c.LockTime > 30*time.Second {
		return fmt.Errorf("lockTime must be between 0 and 30s, got %s", c.LockTime)
	}
	if !c.Consistency.IsValid() {
		return fmt.Errorf("unknown consistency level %d", c.Consistency)
	}
	switch c.ReturnFormat {
	case "", query.ReturnFull, query.ReturnIDOnly:
	default:
		return fmt.Errorf("unknown return format %q", c.ReturnFormat)
	}
	if c.CreateConcurrency < 1 {
		return fmt.Errorf("createConcurrency must be at least 1")
	}
	return nil
}

func (c *Config) writeOptions() WriteOptions {
	return WriteOptions{PersistTo: c.PersistTo, ReplicateTo: c.ReplicateTo}
}

// effectiveOptions merges the connection defaults into opts. Flags are
// combined with OR; a zero consistency and an empty return format take the
// connection's values.
func (c *Config) effectiveOptions(opts *query.Options) *query.Options {
	var out query.Options
	if opts != nil {
		out = *opts
	}
	out.CaseSensitive = out.CaseSensitive || c.CaseSensitive
	out.DoNotReturn = out.DoNotReturn || c.DoNotReturn
	out.StableOrder = out.StableOrder || c.StableOrder
	if out.Consistency == 0 {
		out.Consistency = c.Consistency
	}
	if out.ReturnFormat == "" {
		out.ReturnFormat = c.ReturnFormat
	}
	return &out
}
