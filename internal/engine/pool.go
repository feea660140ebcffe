package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

// WorkerHandle is the pool's view of one media worker.
type WorkerHandle interface {
	ID() int
	CreateRouter(ctx context.Context, roomID domain.RoomID) (core.Router, error)
	Close() error
}

// Factory spawns worker number id. died is invoked if the worker exits
// without being closed.
type Factory func(ctx context.Context, id int, died func(error)) (WorkerHandle, error)

// ProcessFactory spawns real worker processes.
func ProcessFactory(cfg Config) Factory {
	return func(ctx context.Context, id int, died func(error)) (WorkerHandle, error) {
		return Spawn(ctx, id, cfg, log.Logger, died)
	}
}

type roomBinding struct {
	worker WorkerHandle
	router core.Router
}

// Pool owns a fixed arena of media workers and hands them out round-robin for
// new rooms. The arena never resizes after Start; only liveness changes, and a
// dead worker takes the whole node down after the grace delay.
type Pool struct {
	factory Factory
	size    int
	grace   time.Duration
	onFatal func(error)

	next    atomic.Uint64
	workers []WorkerHandle

	mu       sync.RWMutex
	bindings map[domain.RoomID]roomBinding
	closed   bool
}

type PoolOption func(*Pool)

// WithGraceDelay overrides the delay between a worker death and node shutdown.
func WithGraceDelay(d time.Duration) PoolOption {
	return func(p *Pool) { p.grace = d }
}

// WithFatalHandler replaces the default os.Exit on worker death, so the
// composition root can run its graceful shutdown path first.
func WithFatalHandler(f func(error)) PoolOption {
	return func(p *Pool) { p.onFatal = f }
}

func NewPool(factory Factory, size int, opts ...PoolOption) *Pool {
	p := &Pool{
		factory:  factory,
		size:     size,
		grace:    2 * time.Second,
		bindings: make(map[domain.RoomID]roomBinding),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start spawns the whole arena. A single spawn failure fails the start; the
// node cannot run on a partial pool.
func (p *Pool) Start(ctx context.Context) error {
	if p.size <= 0 {
		return fmt.Errorf("invalid worker pool size %d", p.size)
	}

	workers := make([]WorkerHandle, p.size)
	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		i := i
		g.Go(func() error {
			w, err := p.factory(gctx, i, func(err error) { p.workerDied(i, err) })
			if err != nil {
				return fmt.Errorf("spawn worker %d: %w", i, err)
			}
			workers[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, w := range workers {
			if w != nil {
				_ = w.Close()
			}
		}
		return err
	}

	p.workers = workers
	log.Info().Str("module", "engine.pool").Int("workers", p.size).Msg("worker pool ready")
	return nil
}

func (p *Pool) workerDied(id int, err error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return
	}

	log.Error().Str("module", "engine.pool").Int("worker", id).Err(err).
		Dur("grace", p.grace).Msg("media worker died, terminating node")
	time.AfterFunc(p.grace, func() {
		if p.onFatal != nil {
			p.onFatal(err)
			return
		}
		os.Exit(1)
	})
}

// Next returns workers in round-robin order, wrapping at the pool size.
func (p *Pool) Next() WorkerHandle {
	idx := p.next.Add(1) - 1
	return p.workers[idx%uint64(len(p.workers))]
}

// CreateRouter creates a router for the room on the next worker and records
// the room→worker binding.
func (p *Pool) CreateRouter(ctx context.Context, roomID domain.RoomID) (core.Router, error) {
	w := p.Next()
	router, err := w.CreateRouter(ctx, roomID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.bindings[roomID] = roomBinding{worker: w, router: router}
	p.mu.Unlock()

	log.Debug().Str("module", "engine.pool").Str("room", string(roomID)).Int("worker", w.ID()).Msg("room bound to worker")
	return router, nil
}

// RouterFor looks up the router bound to a room.
func (p *Pool) RouterFor(roomID domain.RoomID) (core.Router, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.bindings[roomID]
	if !ok {
		return nil, false
	}
	return b.router, true
}

// WorkerFor looks up the worker owning a room's router.
func (p *Pool) WorkerFor(roomID domain.RoomID) (WorkerHandle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.bindings[roomID]
	if !ok {
		return nil, false
	}
	return b.worker, true
}

// CloseRoom closes the room's router and clears its binding. Closing an
// unbound room is a no-op.
func (p *Pool) CloseRoom(roomID domain.RoomID) error {
	p.mu.Lock()
	b, ok := p.bindings[roomID]
	delete(p.bindings, roomID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return b.router.Close()
}

// Close shuts every worker down. Idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.bindings = make(map[domain.RoomID]roomBinding)
	p.mu.Unlock()

	var errs []error
	for _, w := range p.workers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
