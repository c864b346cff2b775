package imaging

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Scale resizes img uniformly by factor. A factor of 1 returns img itself.
func Scale(img image.Image, factor float64) image.Image {
	if factor == 1 || factor <= 0 {
		return img
	}

	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// ToRGBA returns a copy of img with its origin moved to (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}
