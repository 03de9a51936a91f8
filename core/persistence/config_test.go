package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-n1ql/core/query"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8091, cfg.Port)
	assert.Equal(t, "default", cfg.Bucket)
	assert.Equal(t, Optimistic, cfg.UpdateConcurrency)
	assert.Equal(t, 3, cfg.MaxOptimisticRetries)
	assert.Equal(t, uint(1), cfg.PersistTo)
	assert.Equal(t, uint(0), cfg.ReplicateTo)
	assert.Equal(t, query.ConsistencyNotBounded, cfg.Consistency)
	assert.False(t, cfg.CaseSensitive)
	assert.False(t, cfg.DoNotReturn)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty bucket", func(c *Config) { c.Bucket = "" }},
		{"unknown concurrency", func(c *Config) { c.UpdateConcurrency = "eventual" }},
		{"negative retries", func(c *Config) { c.MaxOptimisticRetries = -1 }},
		{"zero lock time", func(c *Config) { c.LockTime = 0 }},
		{"lock time above cap", func(c *Config) { c.LockTime = time.Minute }},
		{"unknown consistency", func(c *Config) { c.Consistency = 4 }},
		{"no create workers", func(c *Config) { c.CreateConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_EffectiveOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaseSensitive = true
	cfg.Consistency = query.ConsistencyRequestPlus

	eff := cfg.effectiveOptions(nil)
	assert.True(t, eff.CaseSensitive)
	assert.False(t, eff.DoNotReturn)
	assert.Equal(t, query.ConsistencyRequestPlus, eff.Consistency)

	opts := &query.Options{DoNotReturn: true, Consistency: query.ConsistencyStatementPlus}
	eff = cfg.effectiveOptions(opts)
	assert.True(t, eff.CaseSensitive)
	assert.True(t, eff.DoNotReturn)
	assert.Equal(t, query.ConsistencyStatementPlus, eff.Consistency)
	assert.False(t, opts.CaseSensitive, "the caller's options must not be modified")
	assert.Equal(t, query.ReturnFull, eff.ReturnFormat)

	cfg.ReturnFormat = query.ReturnIDOnly
	assert.Equal(t, query.ReturnIDOnly, cfg.effectiveOptions(nil).ReturnFormat)
	assert.Equal(t, query.ReturnFull, cfg.effectiveOptions(&query.Options{ReturnFormat: query.ReturnFull}).ReturnFormat)
}
