package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/daniarmadeit/idi-motors-bot/internal/archive"
	"github.com/daniarmadeit/idi-motors-bot/internal/bridge"
	"github.com/daniarmadeit/idi-motors-bot/internal/entities"
	"github.com/daniarmadeit/idi-motors-bot/internal/processor"
	"github.com/daniarmadeit/idi-motors-bot/internal/transform"
	"github.com/daniarmadeit/idi-motors-bot/internal/workspace"
)

// ErrTransformUnavailable means the in-process transform service failed its
// health probe; the whole request fails rather than shipping watermarked
// photos.
var ErrTransformUnavailable = errors.New("image transform service unavailable")

// LocalBackend runs the batch against the in-process transform service.
type LocalBackend struct {
	Transform    *transform.Client
	Batch        *processor.Batch
	Cap          int
	PreviewCount int
}

func (b *LocalBackend) Process(ctx context.Context, ws *workspace.Workspace, bundle *Bundle, progress func(done, total int)) (*entities.BatchResult, error) {
	if !b.Transform.Healthy(ctx) {
		return nil, ErrTransformUnavailable
	}

	return b.Batch.Process(ctx, bundle.Paths, ws.OutputDir(), processor.Options{
		Cap:          b.Cap,
		Metadata:     bundle.Metadata,
		ArchiveName:  bundle.ArchiveName,
		PreviewCount: b.PreviewCount,
		Progress:     progress,
	})
}

// BridgeBackend ships the batch to the remote serverless worker.
type BridgeBackend struct {
	Bridge *bridge.Client
}

func (b *BridgeBackend) Process(ctx context.Context, _ *workspace.Workspace, bundle *Bundle, progress func(done, total int)) (*entities.BatchResult, error) {
	var photos [][]byte
	for _, path := range bundle.Paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		photos = append(photos, data)
	}

	zipBytes, count, err := b.Bridge.Process(ctx, photos, progress)
	if err != nil {
		return nil, err
	}

	// The worker does not know about the listing; the metadata entry is
	// stitched in here.
	if bundle.Metadata != "" {
		zipBytes, err = archive.WithMetadata(zipBytes, bundle.Metadata)
		if err != nil {
			return nil, err
		}
	}

	name := bundle.ArchiveName
	if name == "" {
		name = "cleaned_photos.zip"
	}

	return &entities.BatchResult{
		TotalCount:     len(bundle.Paths),
		ProcessedCount: count,
		Archive:        zipBytes,
		ArchiveName:    name,
		Metadata:       bundle.Metadata,
	}, nil
}
