package composite

import (
	"image"
	"image/color"
	"math"
)

// grade applies, in order, saturation, brightness, hue shift, a tint
// overlay, affine contrast, then gamma to src, generalizing the teacher's
// per-pixel LUT/affine approach (lepton/buffer.go AGCGrayLinear/PseudoColor)
// from a single-channel thermal buffer to RGBA source layers.
func grade(src *image.NRGBA, p GradeParams) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)

	gammaLUT := buildGammaLUT(p.Gamma)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			fr, fg, fb := float64(r>>8)/255, float64(g>>8)/255, float64(b>>8)/255

			fr, fg, fb = applySaturation(fr, fg, fb, p.Saturation)

			fr += p.Brightness
			fg += p.Brightness
			fb += p.Brightness

			fr, fg, fb = applyHueShift(fr, fg, fb, p.HueShiftDeg)

			fr = overlayTint(fr, float64(p.TintR)/255, p.TintStrength)
			fg = overlayTint(fg, float64(p.TintG)/255, p.TintStrength)
			fb = overlayTint(fb, float64(p.TintB)/255, p.TintStrength)

			fr = fr*p.ContrastMul + p.ContrastOff
			fg = fg*p.ContrastMul + p.ContrastOff
			fb = fb*p.ContrastMul + p.ContrastOff

			ir := gammaLUT[clampByte(fr)]
			ig := gammaLUT[clampByte(fg)]
			ib := gammaLUT[clampByte(fb)]

			dst.SetNRGBA(x, y, color.NRGBA{R: ir, G: ig, B: ib, A: uint8(a >> 8)})
		}
	}
	return dst
}

func buildGammaLUT(gamma float64) [256]uint8 {
	var lut [256]uint8
	for i := 0; i < 256; i++ {
		v := math.Pow(float64(i)/255, gamma)
		lut[i] = clampByte(v)
	}
	return lut
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func overlayTint(channel, tintChannel, strength float64) float64 {
	return channel*(1-strength) + tintChannel*strength
}

// applySaturation scales a pixel's distance from its luma in RGB space.
func applySaturation(r, g, b, sat float64) (float64, float64, float64) {
	luma := 0.2126*r + 0.7152*g + 0.0722*b
	return luma + (r-luma)*sat, luma + (g-luma)*sat, luma + (b-luma)*sat
}

// applyHueShift rotates the pixel's hue in HSL space by degrees.
func applyHueShift(r, g, b, degrees float64) (float64, float64, float64) {
	if degrees == 0 {
		return r, g, b
	}
	h, s, l := rgbToHSL(r, g, b)
	h = math.Mod(h+degrees/360, 1)
	if h < 0 {
		h += 1
	}
	return hslToRGB(h, s, l)
}

func rgbToHSL(r, g, b float64) (h, s, l float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l = (max + min) / 2
	if max == min {
		return 0, 0, l
	}
	d := max - min
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	case b:
		h = (r-g)/d + 4
	}
	h /= 6
	return h, s, l
}

func hslToRGB(h, s, l float64) (float64, float64, float64) {
	if s == 0 {
		return l, l, l
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return hueToRGB(p, q, h+1.0/3), hueToRGB(p, q, h), hueToRGB(p, q, h-1.0/3)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}
