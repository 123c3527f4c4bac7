// Package sink tracks request lifecycles for the HTTP transport. The
// registry is the in-memory view (status, progress, previews); finished
// archives live in the session store so they survive a restartable fetch
// window without pinning memory here.
package sink

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daniarmadeit/idi-motors-bot/internal/delivery"
	"github.com/daniarmadeit/idi-motors-bot/internal/entities"
	"github.com/daniarmadeit/idi-motors-bot/internal/listing"
	"github.com/daniarmadeit/idi-motors-bot/internal/session"
)

const saveTimeout = 10 * time.Second

// State is one request's mutable tracking record.
type State struct {
	mu       sync.Mutex
	info     entities.RequestInfo
	car      *listing.CarData
	previews [][]byte
	doneAt   time.Time
}

func (s *State) Info() entities.RequestInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *State) Car() *listing.CarData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.car
}

// SetCar parks the scraped listing record for later description generation.
func (s *State) SetCar(car *listing.CarData) {
	s.mu.Lock()
	s.car = car
	s.mu.Unlock()
}

func (s *State) Preview(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.previews) {
		return nil
	}
	return s.previews[i]
}

func (s *State) PreviewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.previews)
}

// Registry holds the live request states, keyed by request id. Finished
// entries are swept out once their retention window passes; the archive
// itself expires independently in the session store.
type Registry struct {
	mu      sync.Mutex
	states  map[uuid.UUID]*State
	ttl     time.Duration
	store   *session.Store
	uploads *delivery.Uploader // nil when mirroring is off
}

func NewRegistry(ctx context.Context, store *session.Store, uploads *delivery.Uploader, ttl, sweep time.Duration) *Registry {
	r := &Registry{
		states:  make(map[uuid.UUID]*State),
		ttl:     ttl,
		store:   store,
		uploads: uploads,
	}
	go r.sweepLoop(ctx, sweep)
	return r
}

// Track registers a new request and returns its sink.
func (r *Registry) Track(id uuid.UUID) *Sink {
	st := &State{info: entities.RequestInfo{
		ID:          id,
		Status:      entities.StatusQueued,
		SubmittedAt: time.Now(),
	}}

	r.mu.Lock()
	r.states[id] = st
	r.mu.Unlock()

	return &Sink{id: id, st: st, store: r.store, uploads: r.uploads}
}

// Drop forgets a request that never made it into the queue.
func (r *Registry) Drop(id uuid.UUID) {
	r.mu.Lock()
	delete(r.states, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id uuid.UUID) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	return st, ok
}

func (r *Registry) sweepLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, st := range r.states {
		st.mu.Lock()
		expired := !st.doneAt.IsZero() && now.Sub(st.doneAt) > r.ttl
		st.mu.Unlock()
		if expired {
			delete(r.states, id)
		}
	}
}

// Sink receives lifecycle callbacks for one request.
type Sink struct {
	id      uuid.UUID
	st      *State
	store   *session.Store
	uploads *delivery.Uploader
}

// SetCar parks the scraped listing record on the request's state.
func (s *Sink) SetCar(car *listing.CarData) { s.st.SetCar(car) }

func (s *Sink) Processing() {
	s.st.mu.Lock()
	s.st.info.Status = entities.StatusProcessing
	s.st.mu.Unlock()
}

func (s *Sink) Progress(done, total int) {
	s.st.mu.Lock()
	s.st.info.Done = done
	s.st.info.Total = total
	s.st.mu.Unlock()
}

func (s *Sink) Succeeded(res *entities.BatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.store.SaveArchive(ctx, s.id.String(), res.Archive); err != nil {
		log.Printf("[sink] park archive for %s: %v", s.id, err)
		s.Failed(err)
		return
	}

	if s.uploads != nil {
		if err := s.uploads.Enqueue(context.Background(), res.ArchiveName, res.Archive); err != nil {
			log.Printf("[sink] mirror %s skipped: %v", res.ArchiveName, err)
		}
	}

	s.st.mu.Lock()
	s.st.info.Status = entities.StatusDone
	s.st.info.Done = res.ProcessedCount
	s.st.info.Total = res.TotalCount
	s.st.info.ArchiveName = res.ArchiveName
	s.st.previews = res.Previews
	s.st.doneAt = time.Now()
	s.st.mu.Unlock()
}

func (s *Sink) Failed(err error) {
	s.st.mu.Lock()
	s.st.info.Status = entities.StatusFailed
	s.st.info.Error = err.Error()
	s.st.doneAt = time.Now()
	s.st.mu.Unlock()
}
