// Package scheduler owns the bounded FIFO of pending requests and the single
// drain goroutine that works through them. At most one request is being
// processed at any instant; submissions beyond capacity fail fast.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/getsentry/sentry-go"

	"github.com/daniarmadeit/idi-motors-bot/internal/pipeline"
)

// ErrQueueFull is returned by Submit when the backlog is at capacity. The
// caller surfaces it immediately; nothing blocks or retries.
var ErrQueueFull = errors.New("request queue is full")

type Scheduler struct {
	run      func(ctx context.Context, req *pipeline.Request) error
	capacity int

	mu       sync.Mutex
	queue    []*pipeline.Request
	draining bool
}

// New builds a scheduler around the given per-request unit of work. run's
// error (or panic) is reported to the request's sink; it never stops the
// drain loop.
func New(capacity int, run func(ctx context.Context, req *pipeline.Request) error) *Scheduler {
	if capacity <= 0 {
		capacity = 20
	}
	return &Scheduler{run: run, capacity: capacity}
}

// Submit enqueues the request and returns its 1-based queue position. The
// drain goroutine is started only when idle; the draining flag under the
// mutex is the sole concurrency-control point.
func (s *Scheduler) Submit(ctx context.Context, req *pipeline.Request) (int, error) {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		s.mu.Unlock()
		return 0, ErrQueueFull
	}
	s.queue = append(s.queue, req)
	pos := len(s.queue)

	start := !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()

	if start {
		go s.drain(ctx)
	}
	return pos, nil
}

// Backlog reports how many requests are waiting (the active one excluded).
func (s *Scheduler) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// drain pops and processes requests strictly FIFO until the queue is empty,
// then clears the draining flag and exits.
func (s *Scheduler) drain(ctx context.Context) {
	log.Printf("[scheduler] drain loop started")

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			log.Printf("[scheduler] drain loop finished")
			return
		}
		req := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.processOne(ctx, req)
	}
}

// processOne runs one request to completion and reports its outcome to its
// own sink exactly once. Panics are contained here so the drain loop can
// never die with the draining flag stuck true.
func (s *Scheduler) processOne(ctx context.Context, req *pipeline.Request) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("request %s panicked: %v", req.ID, r)
			log.Printf("[scheduler] %v", err)
			sentry.CaptureException(err)
			req.Sink.Failed(err)
		}
	}()

	log.Printf("[scheduler] processing request %s", req.ID)

	if err := s.run(ctx, req); err != nil {
		log.Printf("[scheduler] request %s failed: %v", req.ID, err)
		sentry.CaptureException(err)
		req.Sink.Failed(err)
		return
	}

	log.Printf("[scheduler] request %s done", req.ID)
}
