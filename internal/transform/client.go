// Package transform talks to the IOPaint-compatible image service: mask
// guided inpainting to erase the vendor watermark, and RealESRGAN upscaling
// for low-resolution photos. Both calls return an explicit error so the
// caller decides whether to fall back to the untouched image.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/daniarmadeit/idi-motors-bot/internal/config"
	"github.com/daniarmadeit/idi-motors-bot/internal/imageio"
)

const (
	inpaintPath = "/api/v1/inpaint"
	upscalePath = "/api/v1/run_plugin_gen_image"
	healthPath  = "/api/v1/server-config"

	upscalePlugin = "RealESRGAN"
)

type Client struct {
	baseURL string
	client  *http.Client

	inpaintTimeout time.Duration
	upscaleTimeout time.Duration
	healthTimeout  time.Duration

	watermarkW    int
	watermarkH    int
	minPixels     int
	upscaleFactor int
}

func NewClient(httpClient *http.Client, cfg config.IOPaintConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.InpaintTimeout <= 0 {
		cfg.InpaintTimeout = 120
	}
	if cfg.UpscaleTimeout <= 0 {
		cfg.UpscaleTimeout = 180
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5
	}
	if cfg.WatermarkWidth <= 0 {
		cfg.WatermarkWidth = 300
	}
	if cfg.WatermarkHeight <= 0 {
		cfg.WatermarkHeight = 30
	}
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = 1920
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = 1080
	}
	if cfg.UpscaleFactor <= 0 {
		cfg.UpscaleFactor = 2
	}
	return &Client{
		baseURL:        cfg.URL,
		client:         httpClient,
		inpaintTimeout: cfg.InpaintTimeout * time.Second,
		upscaleTimeout: cfg.UpscaleTimeout * time.Second,
		healthTimeout:  cfg.HealthTimeout * time.Second,
		watermarkW:     cfg.WatermarkWidth,
		watermarkH:     cfg.WatermarkHeight,
		minPixels:      cfg.MinWidth * cfg.MinHeight,
		upscaleFactor:  cfg.UpscaleFactor,
	}
}

// Healthy probes the service config endpoint. A failed probe means the whole
// transform subsystem is unavailable for the current request.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[transform] health check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[transform] health check: HTTP %d", resp.StatusCode)
		return false
	}
	return true
}

type inpaintRequest struct {
	Image      string `json:"image"`
	Mask       string `json:"mask"`
	LDMSampler string `json:"ldmSampler"`
	HDStrategy string `json:"hdStrategy"`
}

// RemoveWatermark inpaints the fixed watermark rectangle. The returned image
// is the service result; on error the caller keeps the original.
func (c *Client) RemoveWatermark(ctx context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()

	imgB64, err := imageio.Base64PNG(img)
	if err != nil {
		return nil, err
	}
	maskB64, err := imageio.Base64PNG(c.watermarkMask(b.Dx(), b.Dy()))
	if err != nil {
		return nil, err
	}

	payload := inpaintRequest{
		Image:      imgB64,
		Mask:       maskB64,
		LDMSampler: "plms",
		HDStrategy: "Original",
	}

	return c.post(ctx, inpaintPath, payload, c.inpaintTimeout)
}

type upscaleRequest struct {
	Image   string `json:"image"`
	Name    string `json:"name"`
	Upscale int    `json:"upscale"`
}

// NeedsUpscale reports whether the image is below the Full HD pixel count.
// Strictly below: an image at exactly the threshold is left alone.
func (c *Client) NeedsUpscale(img image.Image) bool {
	b := img.Bounds()
	return b.Dx()*b.Dy() < c.minPixels
}

// Upscale runs super-resolution with the fixed integer factor. Output
// dimensions are exactly (factor*w, factor*h) when the call succeeds.
func (c *Client) Upscale(ctx context.Context, img image.Image) (image.Image, error) {
	imgB64, err := imageio.Base64PNG(img)
	if err != nil {
		return nil, err
	}

	payload := upscaleRequest{
		Image:   imgB64,
		Name:    upscalePlugin,
		Upscale: c.upscaleFactor,
	}

	return c.post(ctx, upscalePath, payload, c.upscaleTimeout)
}

// post sends the JSON payload and decodes the raw image bytes the service
// returns (no response envelope).
func (c *Client) post(ctx context.Context, path string, payload any, timeout time.Duration) (image.Image, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transform %s: HTTP %d: %s", path, resp.StatusCode, snippet)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return imageio.Decode(bytes.NewReader(raw))
}
