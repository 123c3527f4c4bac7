package transform

import (
	"image"
	"image/color"
	"image/draw"
)

// watermarkMask builds a binary mask with a single white rectangle of the
// configured fixed size, horizontally centered and flush with the bottom
// edge. The rectangle is an empirically measured watermark location, not
// content-aware, and does not scale with the image.
func (c *Client) watermarkMask(width, height int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))

	x1 := (width - c.watermarkW) / 2
	y1 := height - c.watermarkH
	rect := image.Rect(x1, y1, x1+c.watermarkW, height)

	draw.Draw(mask, rect, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	return mask
}
