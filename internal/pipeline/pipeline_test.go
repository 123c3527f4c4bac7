package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daniarmadeit/idi-motors-bot/internal/entities"
	"github.com/daniarmadeit/idi-motors-bot/internal/workspace"
)

type fakeSource struct {
	ws     *workspace.Workspace
	bundle *Bundle
	err    error
}

func (f *fakeSource) Fetch(_ context.Context, ws *workspace.Workspace) (*Bundle, error) {
	f.ws = ws
	if f.err != nil {
		return nil, f.err
	}
	if f.bundle == nil {
		path := filepath.Join(ws.ExtractDir(), "001.jpg")
		if err := os.WriteFile(path, []byte("photo"), 0o644); err != nil {
			return nil, err
		}
		return &Bundle{Paths: []string{path}}, nil
	}
	return f.bundle, nil
}

type fakeBackend struct {
	res *entities.BatchResult
	err error
}

func (f *fakeBackend) Process(_ context.Context, _ *workspace.Workspace, _ *Bundle, _ func(done, total int)) (*entities.BatchResult, error) {
	return f.res, f.err
}

type captureSink struct {
	processing bool
	succeeded  *entities.BatchResult
	failed     error
}

func (s *captureSink) Processing()                       { s.processing = true }
func (s *captureSink) Progress(done, total int)          {}
func (s *captureSink) Succeeded(res *entities.BatchResult) { s.succeeded = res }
func (s *captureSink) Failed(err error)                  { s.failed = err }

func TestRunSuccessRemovesWorkspace(t *testing.T) {
	src := &fakeSource{}
	snk := &captureSink{}
	res := &entities.BatchResult{ProcessedCount: 1, TotalCount: 1, Archive: []byte("zip")}

	p := New(&fakeBackend{res: res})
	err := p.Run(context.Background(), NewRequest(src, snk))
	require.NoError(t, err)

	require.True(t, snk.processing)
	require.Same(t, res, snk.succeeded)

	_, statErr := os.Stat(src.ws.Root())
	require.True(t, os.IsNotExist(statErr), "workspace must be gone after success")
}

func TestRunBackendFailureRemovesWorkspace(t *testing.T) {
	src := &fakeSource{}
	boom := errors.New("backend down")

	p := New(&fakeBackend{err: boom})
	err := p.Run(context.Background(), NewRequest(src, &captureSink{}))
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(src.ws.Root())
	require.True(t, os.IsNotExist(statErr), "workspace must be gone after failure")
}

func TestRunSourceFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("download failed")}

	p := New(&fakeBackend{})
	err := p.Run(context.Background(), NewRequest(src, &captureSink{}))
	require.ErrorContains(t, err, "download failed")

	_, statErr := os.Stat(src.ws.Root())
	require.True(t, os.IsNotExist(statErr))
}

func TestRunEmptyBundle(t *testing.T) {
	src := &fakeSource{bundle: &Bundle{}}

	p := New(&fakeBackend{})
	err := p.Run(context.Background(), NewRequest(src, &captureSink{}))
	require.ErrorContains(t, err, "no photos")
}

func TestDirectSourceFiltersNonImages(t *testing.T) {
	ws, err := workspace.New()
	require.NoError(t, err)
	defer ws.Close()

	// tiny valid JPEG header is not enough for mimetype; use PNG magic
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)

	src := &DirectSource{Photos: [][]byte{
		png,
		[]byte("just some text"),
	}}

	bundle, err := src.Fetch(context.Background(), ws)
	require.NoError(t, err)
	require.Len(t, bundle.Paths, 1)
	require.Equal(t, "001.png", filepath.Base(bundle.Paths[0]))
}
