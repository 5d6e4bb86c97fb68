package composite

import (
	"image"
	"image/color"
)

// centerOver draws src onto dst centered, using the standard "over"
// alpha-composite operator.
func centerOver(dst *image.NRGBA, src *image.NRGBA) {
	db := dst.Bounds()
	sb := src.Bounds()
	ox := db.Min.X + (db.Dx()-sb.Dx())/2
	oy := db.Min.Y + (db.Dy()-sb.Dy())/2

	for y := 0; y < sb.Dy(); y++ {
		for x := 0; x < sb.Dx(); x++ {
			sr, sg, sb8, sa := src.At(sb.Min.X+x, sb.Min.Y+y).RGBA()
			dx, dy := ox+x, oy+y
			if dx < db.Min.X || dx >= db.Max.X || dy < db.Min.Y || dy >= db.Max.Y {
				continue
			}
			dst.Set(dx, dy, alphaOver(
				color.NRGBA{R: uint8(sr >> 8), G: uint8(sg >> 8), B: uint8(sb8 >> 8), A: uint8(sa >> 8)},
				dst.NRGBAAt(dx, dy),
			))
		}
	}
}

func alphaOver(src, dst color.NRGBA) color.NRGBA {
	sa := float64(src.A) / 255
	da := float64(dst.A) / 255
	outA := sa + da*(1-sa)
	if outA == 0 {
		return color.NRGBA{}
	}
	mix := func(s, d uint8) uint8 {
		v := (float64(s)*sa + float64(d)*da*(1-sa)) / outA
		return clampByte(v / 255)
	}
	return color.NRGBA{R: mix(src.R, dst.R), G: mix(src.G, dst.G), B: mix(src.B, dst.B), A: uint8(outA * 255)}
}

// centerScreen draws src onto dst centered, using a "screen"
// (inverted-multiply) blend operator weighted by src's alpha (spec.md §4.4
// step 4).
func centerScreen(dst *image.NRGBA, src *image.NRGBA) {
	db := dst.Bounds()
	sb := src.Bounds()
	ox := db.Min.X + (db.Dx()-sb.Dx())/2
	oy := db.Min.Y + (db.Dy()-sb.Dy())/2

	for y := 0; y < sb.Dy(); y++ {
		for x := 0; x < sb.Dx(); x++ {
			sc := src.NRGBAAt(sb.Min.X+x, sb.Min.Y+y)
			dx, dy := ox+x, oy+y
			if dx < db.Min.X || dx >= db.Max.X || dy < db.Min.Y || dy >= db.Max.Y {
				continue
			}
			dc := dst.NRGBAAt(dx, dy)
			alpha := float64(sc.A) / 255
			screened := color.NRGBA{
				R: screenChannel(dc.R, sc.R),
				G: screenChannel(dc.G, sc.G),
				B: screenChannel(dc.B, sc.B),
				A: 255,
			}
			blended := lerpColor(dc, screened, alpha)
			blended.A = clampByte(float64(dc.A)/255 + alpha*(1-float64(dc.A)/255))
			dst.SetNRGBA(dx, dy, blended)
		}
	}
}

func screenChannel(a, b uint8) uint8 {
	fa := float64(a) / 255
	fb := float64(b) / 255
	return clampByte(1 - (1-fa)*(1-fb))
}

func lerpColor(a, b color.NRGBA, t float64) color.NRGBA {
	lerp := func(x, y uint8) uint8 { return clampByte(float64(x)/255*(1-t) + float64(y)/255*t) }
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: a.A}
}
