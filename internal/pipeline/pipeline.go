// Package pipeline orchestrates one request end to end: materialize the
// source photos into a scratch workspace, run them through a transform
// backend, hand the result to the request's sink, and tear the workspace
// down on every exit path.
//
// The photo source (vendor ZIP vs direct upload) and the transform backend
// (in-process service vs remote worker) are capability pairs, so a single
// pipeline serves every deployment variant.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/daniarmadeit/idi-motors-bot/internal/entities"
	"github.com/daniarmadeit/idi-motors-bot/internal/workspace"
)

// Bundle is a materialized photo set inside a workspace.
type Bundle struct {
	// Paths are the source photo files, in ordinal order.
	Paths []string
	// Metadata is plain-text listing data to embed in the result archive.
	Metadata string
	// ArchiveName names the delivered ZIP.
	ArchiveName string
}

// PhotoSource materializes a request's photos into its workspace.
type PhotoSource interface {
	Fetch(ctx context.Context, ws *workspace.Workspace) (*Bundle, error)
}

// Backend turns a materialized bundle into a batch result.
type Backend interface {
	Process(ctx context.Context, ws *workspace.Workspace, bundle *Bundle, progress func(done, total int)) (*entities.BatchResult, error)
}

// Sink is the caller's capability to observe one request. Processing fires
// when the request leaves the queue; exactly one of Succeeded or Failed is
// invoked after it, once.
type Sink interface {
	Processing()
	Progress(done, total int)
	Succeeded(res *entities.BatchResult)
	Failed(err error)
}

// Request is one immutable unit of work. Lifecycle: create, enqueue,
// dequeue, process, success or failure, discard. Never retried.
type Request struct {
	ID          uuid.UUID
	Source      PhotoSource
	Sink        Sink
	SubmittedAt time.Time
}

func NewRequest(source PhotoSource, sink Sink) *Request {
	return &Request{
		ID:          uuid.New(),
		Source:      source,
		Sink:        sink,
		SubmittedAt: time.Now(),
	}
}

type Pipeline struct {
	backend Backend
}

func New(backend Backend) *Pipeline {
	return &Pipeline{backend: backend}
}

// Run processes one request. The workspace is removed unconditionally,
// whatever path the processing takes. On success the sink receives the
// result before the workspace disappears.
func (p *Pipeline) Run(ctx context.Context, req *Request) error {
	req.Sink.Processing()

	ws, err := workspace.New()
	if err != nil {
		return fmt.Errorf("request %s: %w", req.ID, err)
	}
	defer func() {
		if err := ws.Close(); err != nil {
			log.Printf("[pipeline] workspace teardown for %s: %v", req.ID, err)
		}
	}()

	bundle, err := req.Source.Fetch(ctx, ws)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.ID, err)
	}
	if len(bundle.Paths) == 0 {
		return fmt.Errorf("request %s: no photos in source", req.ID)
	}

	res, err := p.backend.Process(ctx, ws, bundle, req.Sink.Progress)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.ID, err)
	}

	req.Sink.Succeeded(res)
	return nil
}
