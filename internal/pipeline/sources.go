package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"

	"github.com/daniarmadeit/idi-motors-bot/internal/archive"
	"github.com/daniarmadeit/idi-motors-bot/internal/listing"
	"github.com/daniarmadeit/idi-motors-bot/internal/workspace"
)

// ListingSource scrapes a vehicle page and downloads its photo bundle.
type ListingSource struct {
	Parser   listing.Source
	Transfer *archive.Transfer
	URL      string

	// OnCarData, when set, receives the scraped record before the photo
	// download starts (the transport layer parks it for later description
	// generation).
	OnCarData func(*listing.CarData)
}

func (s *ListingSource) Fetch(ctx context.Context, ws *workspace.Workspace) (*Bundle, error) {
	car, err := s.Parser.Parse(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("scrape listing: %w", err)
	}
	log.Printf("[pipeline] scraped %q, photo bundle: %v", car.Name, car.PhotoDownloadURL != "")

	if s.OnCarData != nil {
		s.OnCarData(car)
	}

	if car.PhotoDownloadURL == "" {
		return nil, fmt.Errorf("listing %s has no photo bundle", s.URL)
	}

	// Referer must be the listing page or the vendor rejects the download.
	paths, err := s.Transfer.FetchAndExtract(ctx, car.PhotoDownloadURL, s.URL, ws)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Paths:       paths,
		Metadata:    car.Text(),
		ArchiveName: car.ArchiveName(),
	}, nil
}

// DirectSource materializes caller-supplied photo buffers, for the
// direct-upload variant that skips scraping entirely.
type DirectSource struct {
	Photos   [][]byte
	Metadata string
}

func (s *DirectSource) Fetch(_ context.Context, ws *workspace.Workspace) (*Bundle, error) {
	var paths []string
	for i, photo := range s.Photos {
		ext := mimetype.Detect(photo).Extension()
		switch ext {
		case ".jpg", ".jpeg", ".png":
		default:
			log.Printf("[pipeline] skipping upload #%d with type %s", i+1, ext)
			continue
		}

		path := filepath.Join(ws.ExtractDir(), fmt.Sprintf("%03d%s", i+1, ext))
		if err := os.WriteFile(path, photo, 0o644); err != nil {
			return nil, fmt.Errorf("stage upload #%d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return &Bundle{
		Paths:       paths,
		Metadata:    s.Metadata,
		ArchiveName: "cleaned_photos.zip",
	}, nil
}
