// Package processor drives the per-image pipeline over one request's photo
// set: load, remove watermark, conditionally upscale, save. One corrupt
// photo never sinks the batch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"github.com/daniarmadeit/idi-motors-bot/internal/archive"
	"github.com/daniarmadeit/idi-motors-bot/internal/entities"
	"github.com/daniarmadeit/idi-motors-bot/internal/imageio"
)

// ErrEmptyResult means zero images survived processing. Reported as a
// failure, never delivered as an empty archive.
var ErrEmptyResult = errors.New("no images survived processing")

const (
	previewWidth  = 640
	previewHeight = 480
)

// Transformer is the remote image service surface the batch depends on.
type Transformer interface {
	RemoveWatermark(ctx context.Context, img image.Image) (image.Image, error)
	Upscale(ctx context.Context, img image.Image) (image.Image, error)
	NeedsUpscale(img image.Image) bool
}

// ProgressFunc is invoked after each image with (completed, total).
type ProgressFunc func(done, total int)

type Options struct {
	// Cap is the hard ceiling on processed images; input beyond it is
	// silently dropped.
	Cap int
	// Metadata, when set, is embedded in the result archive as car_data.txt.
	Metadata string
	// ArchiveName names the delivered ZIP.
	ArchiveName string
	// PreviewCount thumbnails of the first processed photos are attached to
	// the result.
	PreviewCount int
	Progress     ProgressFunc
}

type Batch struct {
	transformer Transformer
}

func NewBatch(t Transformer) *Batch {
	return &Batch{transformer: t}
}

// Process runs the per-image pipeline sequentially, saving survivors into
// outDir under their zero-padded ordinal names, and assembles the result
// archive. Per-image failures are logged and dropped; the ordinal order of
// the survivors is preserved.
//
// The loop is deliberately not parallelized: the transform service is the
// bottleneck, and in-order completion keeps the ordinal invariant without a
// resequencing step.
func (b *Batch) Process(ctx context.Context, paths []string, outDir string, opts Options) (*entities.BatchResult, error) {
	if opts.Cap > 0 && len(paths) > opts.Cap {
		log.Printf("[batch] capping %d images to %d", len(paths), opts.Cap)
		paths = paths[:opts.Cap]
	}

	total := len(paths)
	var processed []string
	var previews [][]byte

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outPath, img, err := b.processOne(ctx, path, outDir, i)
		if err != nil {
			log.Printf("[batch] dropping %s: %v", filepath.Base(path), err)
		} else {
			processed = append(processed, outPath)
			if opts.PreviewCount > 0 && len(previews) < opts.PreviewCount {
				if thumb, err := imageio.Thumbnail(img, previewWidth, previewHeight); err == nil {
					previews = append(previews, thumb)
				}
			}
		}

		reportProgress(opts.Progress, i+1, total)
	}

	if len(processed) == 0 {
		return nil, ErrEmptyResult
	}

	zipBytes, err := archive.Build(processed, opts.Metadata)
	if err != nil {
		return nil, fmt.Errorf("build result archive: %w", err)
	}

	name := opts.ArchiveName
	if name == "" {
		name = "cleaned_photos.zip"
	}

	return &entities.BatchResult{
		TotalCount:     total,
		ProcessedCount: len(processed),
		Archive:        zipBytes,
		ArchiveName:    name,
		Previews:       previews,
		Metadata:       opts.Metadata,
	}, nil
}

// processOne loads the photo, erases the watermark, upscales when the
// resolution is below the threshold and writes the PNG result. Transform
// failures degrade to the prior image state; load/save failures drop the
// image.
func (b *Batch) processOne(ctx context.Context, path, outDir string, ordinal int) (string, image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	img, err := imageio.Decode(f)
	f.Close()
	if err != nil {
		return "", nil, err
	}

	cleaned, err := b.transformer.RemoveWatermark(ctx, img)
	if err != nil {
		log.Printf("[batch] watermark removal degraded for %s: %v", filepath.Base(path), err)
	} else {
		img = cleaned
	}

	if b.transformer.NeedsUpscale(img) {
		upscaled, err := b.transformer.Upscale(ctx, img)
		if err != nil {
			log.Printf("[batch] upscale degraded for %s: %v", filepath.Base(path), err)
		} else {
			img = upscaled
		}
	}

	raw, err := imageio.EncodePNG(img)
	if err != nil {
		return "", nil, err
	}

	outPath := filepath.Join(outDir, fmt.Sprintf("%03d.png", ordinal+1))
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		return "", nil, err
	}
	return outPath, img, nil
}

// reportProgress shields the batch from a misbehaving callback.
func reportProgress(fn ProgressFunc, done, total int) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[batch] progress callback panicked: %v", r)
		}
	}()
	fn(done, total)
}
