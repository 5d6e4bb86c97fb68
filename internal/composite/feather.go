package composite

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// feather resizes src to size x size with a high-quality reconstruction
// kernel (Lanczos-3), then multiplies in a radial alpha mask: fully opaque
// inside radius-feather, fully transparent at radius (spec.md §4.4 step 3).
func feather(src *image.NRGBA, size, radius, featherWidth int) *image.NRGBA {
	resized := imaging.Resize(src, size, size, imaging.Lanczos)
	out := image.NewNRGBA(resized.Bounds())

	cx := float64(size) / 2
	cy := float64(size) / 2
	innerRadius := float64(radius - featherWidth)
	outerRadius := float64(radius)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, a := resized.At(x, y).RGBA()
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			dist := dx*dx + dy*dy
			alphaScale := radialAlpha(dist, innerRadius, outerRadius)
			origA := float64(a >> 8)
			newA := uint8(origA * alphaScale)
			out.SetNRGBA(x, y, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: newA})
		}
	}
	return out
}

// radialAlpha returns 1.0 within innerRadius, 0.0 at/beyond outerRadius, and
// a linear falloff between, given squared distance from center.
func radialAlpha(distSq, innerRadius, outerRadius float64) float64 {
	if innerRadius < 0 {
		innerRadius = 0
	}
	dist := math.Sqrt(distSq)
	if dist <= innerRadius {
		return 1.0
	}
	if dist >= outerRadius || outerRadius <= innerRadius {
		return 0.0
	}
	return 1.0 - (dist-innerRadius)/(outerRadius-innerRadius)
}
