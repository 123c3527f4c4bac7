package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/daniarmadeit/idi-motors-bot/internal/imageio"
)

type fakeTransformer struct {
	upscaleAll  bool
	inpaintErr  error
	upscaleErr  error
	inpaintHits int
	upscaleHits int
}

func (f *fakeTransformer) RemoveWatermark(_ context.Context, img image.Image) (image.Image, error) {
	f.inpaintHits++
	if f.inpaintErr != nil {
		return nil, f.inpaintErr
	}
	return img, nil
}

func (f *fakeTransformer) Upscale(_ context.Context, img image.Image) (image.Image, error) {
	f.upscaleHits++
	if f.upscaleErr != nil {
		return nil, f.upscaleErr
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.Lanczos), nil
}

func (f *fakeTransformer) NeedsUpscale(_ image.Image) bool { return f.upscaleAll }

func writePhoto(t *testing.T, dir string, ordinal, size int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	raw, err := imageio.EncodePNG(img)
	require.NoError(t, err)

	path := filepath.Join(dir, fmt.Sprintf("%03d.png", ordinal))
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func archiveNames(t *testing.T, zipBytes []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestProcessDropsCorruptImage(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	var paths []string
	for i := 1; i <= 5; i++ {
		if i == 3 {
			p := filepath.Join(dir, "003.png")
			require.NoError(t, os.WriteFile(p, []byte("not an image"), 0o644))
			paths = append(paths, p)
			continue
		}
		paths = append(paths, writePhoto(t, dir, i, 32))
	}

	b := NewBatch(&fakeTransformer{})
	res, err := b.Process(context.Background(), paths, outDir, Options{})
	require.NoError(t, err)

	require.Equal(t, 5, res.TotalCount)
	require.Equal(t, 4, res.ProcessedCount)
	require.Equal(t, []string{"001.png", "002.png", "004.png", "005.png"}, archiveNames(t, res.Archive))
}

func TestProcessAllCorrupt(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 3; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%03d.jpg", i))
		require.NoError(t, os.WriteFile(p, []byte("garbage"), 0o644))
		paths = append(paths, p)
	}

	b := NewBatch(&fakeTransformer{})
	_, err := b.Process(context.Background(), paths, t.TempDir(), Options{})
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestProcessCapsBatch(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 7; i++ {
		paths = append(paths, writePhoto(t, dir, i, 16))
	}

	b := NewBatch(&fakeTransformer{})
	res, err := b.Process(context.Background(), paths, t.TempDir(), Options{Cap: 4})
	require.NoError(t, err)

	require.Equal(t, 4, res.TotalCount)
	require.Equal(t, 4, res.ProcessedCount)
	require.Equal(t, []string{"001.png", "002.png", "003.png", "004.png"}, archiveNames(t, res.Archive))
}

func TestProcessDegradesOnTransformErrors(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writePhoto(t, dir, 1, 16)}

	ft := &fakeTransformer{
		upscaleAll: true,
		inpaintErr: errors.New("inpaint down"),
		upscaleErr: errors.New("upscale down"),
	}
	b := NewBatch(ft)

	res, err := b.Process(context.Background(), paths, t.TempDir(), Options{})
	require.NoError(t, err, "transform failures degrade, they do not drop the image")
	require.Equal(t, 1, res.ProcessedCount)
	require.Equal(t, 1, ft.inpaintHits)
	require.Equal(t, 1, ft.upscaleHits)
}

func TestProcessUpscalesSmallImages(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	paths := []string{writePhoto(t, dir, 1, 16)}

	ft := &fakeTransformer{upscaleAll: true}
	b := NewBatch(ft)

	_, err := b.Process(context.Background(), paths, outDir, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, ft.upscaleHits)

	f, err := os.Open(filepath.Join(outDir, "001.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := imageio.Decode(f)
	require.NoError(t, err)
	require.Equal(t, 32, img.Bounds().Dx())
}

func TestProcessProgressAndPreviews(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 4; i++ {
		paths = append(paths, writePhoto(t, dir, i, 16))
	}

	var calls [][2]int
	b := NewBatch(&fakeTransformer{})
	res, err := b.Process(context.Background(), paths, t.TempDir(), Options{
		PreviewCount: 2,
		Progress: func(done, total int) {
			calls = append(calls, [2]int{done, total})
		},
	})
	require.NoError(t, err)

	require.Equal(t, [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, calls)
	require.Len(t, res.Previews, 2)
}

func TestProcessToleratesPanickingProgress(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writePhoto(t, dir, 1, 16), writePhoto(t, dir, 2, 16)}

	b := NewBatch(&fakeTransformer{})
	res, err := b.Process(context.Background(), paths, t.TempDir(), Options{
		Progress: func(done, total int) { panic("reporting channel gone") },
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.ProcessedCount)
}
