package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daniarmadeit/idi-motors-bot/internal/config"
	"github.com/daniarmadeit/idi-motors-bot/internal/imageio"
)

func testConfig(url string) config.IOPaintConfig {
	return config.IOPaintConfig{
		URL:             url,
		InpaintTimeout:  5,
		UpscaleTimeout:  5,
		HealthTimeout:   2,
		WatermarkWidth:  300,
		WatermarkHeight: 30,
		MinWidth:        1920,
		MinHeight:       1080,
		UpscaleFactor:   2,
	}
}

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 130, B: 140, A: 255})
		}
	}
	return img
}

func TestNewClientDefaults(t *testing.T) {
	// an empty config block must not yield zero timeouts or a zero pixel
	// threshold that disables upscaling
	c := NewClient(nil, config.IOPaintConfig{URL: "http://x"})

	require.Equal(t, 120*time.Second, c.inpaintTimeout)
	require.Equal(t, 180*time.Second, c.upscaleTimeout)
	require.Equal(t, 5*time.Second, c.healthTimeout)
	require.Equal(t, 300, c.watermarkW)
	require.Equal(t, 30, c.watermarkH)
	require.Equal(t, 1920*1080, c.minPixels)
	require.Equal(t, 2, c.upscaleFactor)

	require.True(t, c.NeedsUpscale(solidImage(640, 480)))
}

func TestWatermarkMaskGeometry(t *testing.T) {
	c := NewClient(nil, testConfig(""))
	mask := c.watermarkMask(800, 600)

	b := mask.Bounds()
	require.Equal(t, 800, b.Dx())
	require.Equal(t, 600, b.Dy())

	inside := func(x, y int) bool {
		return x >= 250 && x < 550 && y >= 570 && y < 600
	}
	for _, p := range []struct{ x, y int }{
		{250, 570}, {549, 599}, {400, 585}, // inside the rectangle
		{249, 585}, {550, 585}, {400, 569}, {0, 0}, {799, 0}, // outside
	} {
		want := uint8(0)
		if inside(p.x, p.y) {
			want = 255
		}
		require.Equal(t, want, mask.GrayAt(p.x, p.y).Y, "pixel (%d,%d)", p.x, p.y)
	}
}

func TestNeedsUpscaleStrictThreshold(t *testing.T) {
	c := NewClient(nil, testConfig(""))

	require.False(t, c.NeedsUpscale(solidImage(1920, 1080)), "exact threshold is left alone")
	require.True(t, c.NeedsUpscale(solidImage(1919, 1080)))
	require.True(t, c.NeedsUpscale(solidImage(1920, 1079)))
	require.True(t, c.NeedsUpscale(solidImage(640, 480)))
}

func TestRemoveWatermark(t *testing.T) {
	var got inpaintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, inpaintPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		out, err := imageio.EncodePNG(solidImage(10, 10))
		require.NoError(t, err)
		_, _ = w.Write(out)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testConfig(srv.URL))

	res, err := c.RemoveWatermark(context.Background(), solidImage(400, 300))
	require.NoError(t, err)
	require.Equal(t, 10, res.Bounds().Dx())

	require.Equal(t, "plms", got.LDMSampler)
	require.Equal(t, "Original", got.HDStrategy)

	// the mask must match the source dimensions
	maskRaw, err := base64.StdEncoding.DecodeString(got.Mask)
	require.NoError(t, err)
	mask, err := imageio.Decode(bytes.NewReader(maskRaw))
	require.NoError(t, err)
	require.Equal(t, 400, mask.Bounds().Dx())
	require.Equal(t, 300, mask.Bounds().Dy())
}

func TestRemoveWatermarkServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testConfig(srv.URL))

	_, err := c.RemoveWatermark(context.Background(), solidImage(100, 100))
	require.Error(t, err)
	require.ErrorContains(t, err, "HTTP 500")
}

func TestUpscale(t *testing.T) {
	var got upscaleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, upscalePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		out, err := imageio.EncodePNG(solidImage(200, 200))
		require.NoError(t, err)
		_, _ = w.Write(out)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testConfig(srv.URL))

	res, err := c.Upscale(context.Background(), solidImage(100, 100))
	require.NoError(t, err)
	require.Equal(t, 200, res.Bounds().Dx())

	require.Equal(t, "RealESRGAN", got.Name)
	require.Equal(t, 2, got.Upscale)
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testConfig(srv.URL))
	require.True(t, c.Healthy(context.Background()))

	down := NewClient(nil, testConfig("http://127.0.0.1:1"))
	require.False(t, down.Healthy(context.Background()))
}
