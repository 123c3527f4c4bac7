// Package archive moves photo bundles in and out of a request's workspace:
// downloading the vendor ZIP, extracting it safely, and packing the
// processed set back up for delivery.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/daniarmadeit/idi-motors-bot/internal/workspace"
)

// ErrDownload marks archive fetch failures: timeouts, non-2xx responses and
// corrupt bundles. Terminal for the owning request.
var ErrDownload = errors.New("photo archive download failed")

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

type Transfer struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func NewTransfer(client *http.Client, timeout time.Duration, userAgent string) *Transfer {
	if client == nil {
		client = &http.Client{}
	}
	return &Transfer{client: client, timeout: timeout, userAgent: userAgent}
}

// FetchAndExtract downloads the ZIP bundle into the workspace, unpacks it and
// returns the extracted image paths sorted ascending. The vendor names files
// with zero-padded numbers, so the lexicographic sort is the arrival order.
func (t *Transfer) FetchAndExtract(ctx context.Context, archiveURL, referer string, ws *workspace.Workspace) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrDownload, resp.StatusCode)
	}

	f, err := os.Create(ws.ArchivePath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	_, err = io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	if err := extractZip(ws.ArchivePath(), ws.ExtractDir()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	return ListImages(ws.ExtractDir())
}

// extractZip unpacks into dst, skipping entries whose resolved path would
// land outside it.
func extractZip(src, dst string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	cleanDst := filepath.Clean(dst) + string(os.PathSeparator)

	for _, entry := range zr.File {
		target := filepath.Join(dst, entry.Name)
		if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), cleanDst) &&
			filepath.Clean(target) != filepath.Clean(dst) {
			log.Printf("[archive] skipping traversal entry %q", entry.Name)
			continue
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := entry.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		out.Close()
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// ListImages walks dir recursively and returns every jpg/jpeg/png file,
// sorted ascending by path.
func ListImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Build packs the processed photos (in the given order, under their own base
// names) into a ZIP, plus an optional car_data.txt entry with any markdown
// markup stripped.
func Build(photoPaths []string, metadataText string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, p := range photoPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		w, err := zw.Create(filepath.Base(p))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}

	if metadataText != "" {
		txt := strings.NewReplacer("**", "", "*", "").Replace(metadataText)
		w, err := zw.Create("car_data.txt")
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(txt)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WithMetadata copies the archive and adds (or replaces) the car_data.txt
// entry. Used when the archive was assembled remotely.
func WithMetadata(zipBytes []byte, metadataText string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("reopen archive: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, entry := range zr.File {
		if entry.Name == "car_data.txt" {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(entry.Name)
		if err != nil {
			rc.Close()
			return nil, err
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}

	txt := strings.NewReplacer("**", "", "*", "").Replace(metadataText)
	w, err := zw.Create("car_data.txt")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(txt)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
