package buddy

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Backing selects where arena bytes come from.
type Backing string

const (
	// BackingHeap allocates the arena as a Go byte slice.
	BackingHeap Backing = "heap"
	// BackingMmap maps the arena as private anonymous memory where the
	// platform supports it, and falls back to the heap elsewhere.
	BackingMmap Backing = "mmap"
)

// Config holds the parameters of one arena.
type Config struct {
	// BasicBlockSize is the minimum allocation granularity in bytes. It is
	// rounded up to a power of two and must exceed the free header size.
	BasicBlockSize int `json:"basic_block_size"`

	// Length is the requested arena size in bytes, rounded up to a power of two.
	Length int `json:"length"`

	// Backing selects heap or mmap arena memory. Empty means heap.
	Backing Backing `json:"backing"`
}

// DefaultConfig returns the default configuration: 8-byte basic blocks in a
// 64 KiB heap arena.
func DefaultConfig() *Config {
	return &Config{
		BasicBlockSize: 8,
		Length:         64 * 1024,
		Backing:        BackingHeap,
	}
}

// LoadConfig loads configuration from a JSON file. Fields missing from the
// file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadConfigFromReader(f)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// options are the construction-time settings of an Allocator.
type options struct {
	backing Backing
	logger  *slog.Logger
}

// Option configures an Allocator.
type Option func(*options)

// WithBacking selects the arena backing.
func WithBacking(b Backing) Option {
	return func(o *options) {
		o.backing = b
	}
}

// WithLogger routes allocator debug records to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Open creates an allocator from cfg and initializes it. It returns the
// allocator and the arena capacity.
func Open(cfg *Config, opts ...Option) (*Allocator, int, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := New(append([]Option{WithBacking(cfg.Backing)}, opts...)...)
	capacity, err := a.Init(cfg.BasicBlockSize, cfg.Length)
	if err != nil {
		return nil, 0, err
	}
	return a, capacity, nil
}
