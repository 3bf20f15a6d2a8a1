// Package config holds the recognized per-field configuration options
// as a plain struct plus functional Options, mirroring pkg/retry's
// Config/Option convention.
package config

import (
	"fmt"

	"github.com/sparsefacet/engine/pkg/utils/cast"
)

// Config mirrors the recognized per-field configuration options.
type Config struct {
	// Sparse enables sparse tracking in the counter.
	Sparse bool

	// MinTags is the minimum N below which sparse is disabled
	// regardless of the sparseness estimate.
	MinTags int64

	// Fraction is the sparse tracker's capacity as a fraction of N.
	Fraction float64

	// CutOff is the sparseness estimator's safety margin.
	CutOff float64

	// Packed prefers an NPM over a plain packed vector when the
	// maxima's bit-width stays within PackedLimit.
	Packed bool

	// PackedLimit is the maximum bit-width for choosing NPM over a
	// plain packed vector.
	PackedLimit int

	// MaxCountsTracked optionally caps stored counts; 0 means
	// unlimited.
	MaxCountsTracked uint64

	// PoolSize is the maximum counters kept per field.
	PoolSize int

	// PoolMinEmpty is the target minimum EMPTY counters the janitor
	// tries to maintain.
	PoolMinEmpty int

	// CleaningThreads is the janitor worker count; 0 means clear
	// inline during release.
	CleaningThreads int

	// CacheToken, if non-empty, tags a filled counter for later
	// re-acquisition by a phase-2 request.
	CacheToken string
}

// Option mutates a Config under construction.
type Option func(*Config)

// Default returns the recognized options' documented defaults.
func Default() Config {
	return Config{
		Sparse:           true,
		MinTags:          10_000,
		Fraction:         0.08,
		CutOff:           0.90,
		Packed:           true,
		PackedLimit:      24,
		MaxCountsTracked: 0,
		PoolSize:         2,
		PoolMinEmpty:     1,
		CleaningThreads:  1,
		CacheToken:       "",
	}
}

// New builds a Config starting from Default and applying opts in order.
func New(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithSparse(enabled bool) Option { return func(c *Config) { c.Sparse = enabled } }
func WithMinTags(n int64) Option     { return func(c *Config) { c.MinTags = n } }
func WithFraction(f float64) Option  { return func(c *Config) { c.Fraction = f } }
func WithCutOff(f float64) Option    { return func(c *Config) { c.CutOff = f } }
func WithPacked(enabled bool) Option { return func(c *Config) { c.Packed = enabled } }
func WithPackedLimit(bits int) Option {
	return func(c *Config) { c.PackedLimit = bits }
}
func WithMaxCountsTracked(max uint64) Option {
	return func(c *Config) { c.MaxCountsTracked = max }
}
func WithPoolSize(n int) Option { return func(c *Config) { c.PoolSize = n } }
func WithPoolMinEmpty(n int) Option {
	return func(c *Config) { c.PoolMinEmpty = n }
}
func WithCleaningThreads(n int) Option {
	return func(c *Config) { c.CleaningThreads = n }
}
func WithCacheToken(token string) Option {
	return func(c *Config) { c.CacheToken = token }
}

// FromMap builds a Config from a loosely-typed option bag — the shape a
// host's query-time field configuration typically arrives in. Unknown
// keys are ignored; recognized keys are type-coerced with
// pkg/utils/cast the way a query-time override layer accepts
// user-supplied values.
func FromMap(m map[string]any) (Config, error) {
	c := Default()

	if v, ok := m["sparse"]; ok {
		b, err := cast.ToBool(v)
		if err != nil {
			return c, fmt.Errorf("config: sparse: %w", err)
		}
		c.Sparse = b
	}
	if v, ok := m["minTags"]; ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return c, fmt.Errorf("config: minTags: %w", err)
		}
		c.MinTags = n
	}
	if v, ok := m["fraction"]; ok {
		f, err := cast.ToFloat64(v)
		if err != nil {
			return c, fmt.Errorf("config: fraction: %w", err)
		}
		c.Fraction = f
	}
	if v, ok := m["cutOff"]; ok {
		f, err := cast.ToFloat64(v)
		if err != nil {
			return c, fmt.Errorf("config: cutOff: %w", err)
		}
		c.CutOff = f
	}
	if v, ok := m["packed"]; ok {
		b, err := cast.ToBool(v)
		if err != nil {
			return c, fmt.Errorf("config: packed: %w", err)
		}
		c.Packed = b
	}
	if v, ok := m["packedLimit"]; ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return c, fmt.Errorf("config: packedLimit: %w", err)
		}
		c.PackedLimit = int(n)
	}
	if v, ok := m["maxCountsTracked"]; ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return c, fmt.Errorf("config: maxCountsTracked: %w", err)
		}
		c.MaxCountsTracked = uint64(n)
	}
	if v, ok := m["poolSize"]; ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return c, fmt.Errorf("config: poolSize: %w", err)
		}
		c.PoolSize = int(n)
	}
	if v, ok := m["poolMinEmpty"]; ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return c, fmt.Errorf("config: poolMinEmpty: %w", err)
		}
		c.PoolMinEmpty = int(n)
	}
	if v, ok := m["cleaningThreads"]; ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return c, fmt.Errorf("config: cleaningThreads: %w", err)
		}
		c.CleaningThreads = int(n)
	}
	if v, ok := m["cacheToken"]; ok {
		s, err := cast.ToString(v)
		if err != nil {
			return c, fmt.Errorf("config: cacheToken: %w", err)
		}
		c.CacheToken = s
	}

	return c, nil
}

// Validate rejects configuration error conditions at construction time:
// bit-width bounds are the packed vector's concern, but fraction and
// packedLimit belong here.
func (c Config) Validate() error {
	if c.Fraction < 0 || c.Fraction > 1 {
		return fmt.Errorf("config: fraction %v out of range [0,1]", c.Fraction)
	}
	if c.PackedLimit < 1 || c.PackedLimit > 64 {
		return fmt.Errorf("config: packedLimit %d out of range [1,64]", c.PackedLimit)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("config: negative poolSize %d", c.PoolSize)
	}
	if c.PoolMinEmpty < 0 {
		return fmt.Errorf("config: negative poolMinEmpty %d", c.PoolMinEmpty)
	}
	if c.CleaningThreads < 0 {
		return fmt.Errorf("config: negative cleaningThreads %d", c.CleaningThreads)
	}
	return nil
}
