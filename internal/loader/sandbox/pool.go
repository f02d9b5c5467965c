package sandbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool manages a pool of reusable runtimes
type Pool struct {
	config   Config
	logger   *zap.Logger
	runtimes chan *Runtime
	size     int
	mu       sync.RWMutex
	closed   bool
}

// NewPool creates a runtime pool
func NewPool(config Config, size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := &Pool{
		config:   config,
		logger:   logger.Named("sandbox"),
		runtimes: make(chan *Runtime, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		rt, err := New(config, pool.logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.runtimes <- rt
	}

	return pool, nil
}

// Acquire gets a runtime from the pool, waiting at most AcquireTimeout
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return nil, ErrPoolClosed
	}

	wait := p.config.AcquireTimeout
	if wait <= 0 {
		wait = DefaultConfig().AcquireTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case rt, ok := <-p.runtimes:
		if !ok {
			return nil, ErrPoolClosed
		}
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrAcquireTimeout
	}
}

// Release resets a runtime and returns it to the pool
func (p *Pool) Release(rt *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return rt.Close()
	}

	if err := rt.Reset(); err != nil {
		rt.Close()
		if fresh, ferr := New(p.config, p.logger); ferr == nil {
			select {
			case p.runtimes <- fresh:
			default:
				fresh.Close()
			}
		}
		return err
	}

	select {
	case p.runtimes <- rt:
		return nil
	default:
		return rt.Close()
	}
}

// Run executes script on a pooled runtime. Pool implements Strategy.
func (p *Pool) Run(ctx context.Context, env *Env, script string) error {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Release(rt); err != nil {
			p.logger.Warn("failed to release runtime", zap.Error(err))
		}
	}()

	return rt.Run(ctx, env, script)
}

// Close closes the pool and all idle runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.runtimes)

	for rt := range p.runtimes {
		rt.Close()
	}

	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.runtimes),
		"in_use":    p.size - len(p.runtimes),
		"closed":    p.closed,
	}
}
