// Package worker provides the bounded pool every dispatch operation runs on.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"golang.org/x/sync/semaphore"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
)

// Pool bounds how many operations run at once.
//
// Waiting for a slot honours the caller's context. Once admitted, an operation
// runs detached from caller cancellation: a caller that gives up gets ctx.Err()
// immediately while the operation finishes in the background, keeps its slot
// until then, and has its result discarded.
type Pool struct {
	name         string
	size         int64
	sem          *semaphore.Weighted
	queueTimeout time.Duration
	metrics      *system.MetricsService
	logger       *utils.Logger
}

// Options configures a pool.
type Options struct {
	// Name labels the pool in logs and metrics.
	Name string

	// Size is the maximum number of concurrently running operations.
	Size int

	// QueueTimeout bounds how long a caller waits for a slot; zero waits until ctx is done.
	QueueTimeout time.Duration
}

// New creates a pool.
func New(opts Options, metrics *system.MetricsService, logger *utils.Logger) *Pool {
	size := int64(max(opts.Size, 1))
	return &Pool{
		name:         opts.Name,
		size:         size,
		sem:          semaphore.NewWeighted(size),
		queueTimeout: opts.QueueTimeout,
		metrics:      metrics,
		logger:       logger.Named("worker").With("pool", opts.Name),
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return int(p.size) }

type result[T any] struct {
	value T
	err   error
}

// Do runs fn on the pool and waits for its result or for ctx to end.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := p.acquire(ctx); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.release()

		var r result[T]
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("Operation panicked", fmt.Errorf("%v", rec), "stack", string(debug.Stack()))
				r = result[T]{err: models.NewInternalError(fmt.Errorf("panic: %v", rec), "")}
			}
			done <- r
		}()

		r.value, r.err = fn(context.WithoutCancel(ctx))
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		p.logger.Debug("Caller abandoned operation", "error", ctx.Err())
		return zero, ctx.Err()
	}
}

// Go queues fn and returns immediately. fn runs once a slot is free.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context)) {
	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		p.metrics.AddInFlight(p.name, 1)
		defer p.release()
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("Background operation panicked", fmt.Errorf("%v", rec), "stack", string(debug.Stack()))
			}
		}()
		fn(context.WithoutCancel(ctx))
	}()
}

func (p *Pool) acquire(ctx context.Context) error {
	waitCtx := ctx
	if p.queueTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.queueTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("Worker pool saturated", "size", p.size, "waited", time.Since(start))
			return models.NewDomainError(models.ErrServiceUnavailable, err, "server busy, try again later", http.StatusServiceUnavailable, "worker")
		}
		return err
	}
	p.metrics.ObserveQueueWait(p.name, time.Since(start))
	p.metrics.AddInFlight(p.name, 1)
	return nil
}

func (p *Pool) release() {
	p.metrics.AddInFlight(p.name, -1)
	p.sem.Release(1)
}
