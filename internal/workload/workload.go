// Package workload drives a shared allocator with concurrent producers and
// consumers connected by a bounded buffer.
//
// Producers allocate blocks of random size, stamp every byte of the block
// with a value derived from a sequence number and hand the block to the
// buffer. Consumers take blocks out, verify the stamp and free them. A stamp
// that does not survive the trip means two live blocks overlapped.
package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/buddykit/buddy"
)

// ErrInvalidConfig is returned by Run for unusable parameters.
var ErrInvalidConfig = errors.New("workload: invalid config")

// Config describes one run.
type Config struct {
	Producers  int   `json:"producers"`
	Consumers  int   `json:"consumers"`
	Requests   int   `json:"requests"`    // total allocations across all producers
	BufferSize int   `json:"buffer_size"` // capacity of the bounded buffer
	MinSize    int   `json:"min_size"`
	MaxSize    int   `json:"max_size"`
	Seed       int64 `json:"seed"`

	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns a small balanced run.
func DefaultConfig() Config {
	return Config{
		Producers:  4,
		Consumers:  4,
		Requests:   10000,
		BufferSize: 64,
		MinSize:    1,
		MaxSize:    1024,
		Seed:       1,
	}
}

// Result summarizes a run.
type Result struct {
	Allocations int64         `json:"allocations"`
	Frees       int64         `json:"frees"`
	OOMRetries  int64         `json:"oom_retries"`
	Corruptions int64         `json:"corruptions"`
	Duration    time.Duration `json:"duration"`
}

// handle is one allocated block in flight between a producer and a consumer.
type handle struct {
	addr buddy.Addr
	buf  []byte
	seq  int64
}

func (c Config) validate(capacity int) error {
	switch {
	case c.Producers < 1 || c.Consumers < 1:
		return fmt.Errorf("%w: need at least one producer and one consumer", ErrInvalidConfig)
	case c.Requests < 0 || c.BufferSize < 0:
		return fmt.Errorf("%w: requests and buffer size must not be negative", ErrInvalidConfig)
	case c.MinSize < 1 || c.MinSize > c.MaxSize:
		return fmt.Errorf("%w: size range [%d, %d]", ErrInvalidConfig, c.MinSize, c.MaxSize)
	case c.MaxSize > capacity:
		return fmt.Errorf("%w: max size %d exceeds arena capacity %d", ErrInvalidConfig, c.MaxSize, capacity)
	}
	return nil
}

// Run executes cfg against a. It returns when every request has been
// allocated and freed, or when ctx is cancelled; in the latter case blocks
// still in the buffer are freed before Run returns ctx's error.
func Run(ctx context.Context, a buddy.BlockAllocator, cfg Config) (Result, error) {
	if err := cfg.validate(a.Capacity()); err != nil {
		return Result{}, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		res  Result
		seq  atomic.Int64
		next atomic.Int64
	)
	ch := make(chan handle, cfg.BufferSize)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	var producers errgroup.Group
	for id := range cfg.Producers {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(id)))
		producers.Go(func() error {
			for next.Add(1) <= int64(cfg.Requests) {
				size := cfg.MinSize + rng.Intn(cfg.MaxSize-cfg.MinSize+1)
				h, err := produce(gctx, a, size, &res)
				if err != nil {
					return err
				}
				h.seq = seq.Add(1)
				fill(h.buf, h.seq)

				select {
				case ch <- h:
				case <-gctx.Done():
					if err := a.Free(h.addr); err != nil {
						return err
					}
					atomic.AddInt64(&res.Frees, 1)
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(ch)
		return producers.Wait()
	})

	for range cfg.Consumers {
		g.Go(func() error {
			for {
				select {
				case h, ok := <-ch:
					if !ok {
						return nil
					}
					if err := consume(a, h, &res, log); err != nil {
						return err
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	err := g.Wait()
	// Consumers may have quit early; the buffer is closed by now.
	for h := range ch {
		if ferr := consume(a, h, &res, log); ferr != nil && err == nil {
			err = ferr
		}
	}
	res.Duration = time.Since(start)

	log.Info("workload finished",
		"allocations", res.Allocations,
		"frees", res.Frees,
		"oom_retries", res.OOMRetries,
		"corruptions", res.Corruptions,
		"duration", res.Duration)
	return res, err
}

// produce allocates size bytes, yielding and retrying while the arena is
// exhausted.
func produce(ctx context.Context, a buddy.BlockAllocator, size int, res *Result) (handle, error) {
	for {
		if err := ctx.Err(); err != nil {
			return handle{}, err
		}
		addr, buf, err := a.Malloc(size)
		if err == nil {
			atomic.AddInt64(&res.Allocations, 1)
			return handle{addr: addr, buf: buf[:cap(buf)]}, nil
		}
		if !errors.Is(err, buddy.ErrOutOfMemory) {
			return handle{}, fmt.Errorf("malloc %d: %w", size, err)
		}
		atomic.AddInt64(&res.OOMRetries, 1)
		runtime.Gosched()
	}
}

// consume verifies the stamp of h and frees it.
func consume(a buddy.BlockAllocator, h handle, res *Result, log *slog.Logger) error {
	if i := verify(h.buf, h.seq); i >= 0 {
		atomic.AddInt64(&res.Corruptions, 1)
		log.Warn("stamp mismatch", "addr", int(h.addr), "seq", h.seq, "offset", i)
	}
	if err := a.Free(h.addr); err != nil {
		return fmt.Errorf("free %d: %w", h.addr, err)
	}
	atomic.AddInt64(&res.Frees, 1)
	return nil
}

func stampByte(seq int64) byte {
	return byte(seq*131 + 17)
}

// fill writes the stamp for seq into every byte of buf.
func fill(buf []byte, seq int64) {
	b := stampByte(seq)
	for i := range buf {
		buf[i] = b
	}
}

// verify returns the offset of the first byte of buf that does not carry the
// stamp for seq, or -1.
func verify(buf []byte, seq int64) int {
	b := stampByte(seq)
	for i, v := range buf {
		if v != b {
			return i
		}
	}
	return -1
}
