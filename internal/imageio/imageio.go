// Package imageio wraps decoding and encoding of the photo formats moving
// through the pipeline. The remote transform endpoints accept and return
// plain encoded bytes, so everything funnels through image.Image here.
package imageio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"

	_ "image/jpeg"
	_ "image/png"

	// vendor bundles occasionally carry webp previews
	_ "github.com/chai2010/webp"

	"github.com/disintegration/imaging"
)

func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64PNG encodes the image as PNG and wraps it in standard base64,
// the shape the inpainting and upscaling endpoints expect.
func Base64PNG(img image.Image) (string, error) {
	raw, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Thumbnail downscales for preview delivery. JPEG keeps previews small.
func Thumbnail(img image.Image, width, height int) ([]byte, error) {
	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
