package composite

import "image"

// GradeParams are the frozen color-grading constants for one source layer.
// Changing any of these is a rendition-version change (spec.md §4.4).
type GradeParams struct {
	Saturation    float64 // multiplier, 1.0 = unchanged
	Brightness    float64 // additive, in [-1,1] applied to normalized channel
	HueShiftDeg   float64 // degrees
	TintR         uint8
	TintG         uint8
	TintB         uint8
	TintStrength  float64 // 0..1, how strongly the tint is overlaid
	ContrastMul   float64 // affine contrast multiplier
	ContrastOff   float64 // affine contrast offset, in [-1,1]
	Gamma         float64
}

// Config is the full Compositor parameter set (spec.md §9 CompositeConfig).
type Config struct {
	Corona GradeParams
	Disk   GradeParams

	DiskFinalSize   int // square edge Disk is resized to before feathering
	CompositeRadius int // radius at which the Disk becomes fully transparent
	FeatherRadius   int // falloff width from CompositeRadius inward
	CanvasW         int
	CanvasH         int
	CropRect        image.Rectangle
	JPEGQuality     int
}

// DefaultConfig returns the frozen production grading/geometry constants.
func DefaultConfig() Config {
	return Config{
		Corona: GradeParams{
			Saturation: 1.15, Brightness: 0.02, HueShiftDeg: -4,
			TintR: 255, TintG: 210, TintB: 140, TintStrength: 0.06,
			ContrastMul: 1.08, ContrastOff: -0.02, Gamma: 0.92,
		},
		Disk: GradeParams{
			Saturation: 1.3, Brightness: 0.0, HueShiftDeg: 2,
			TintR: 255, TintG: 160, TintB: 60, TintStrength: 0.08,
			ContrastMul: 1.12, ContrastOff: 0.0, Gamma: 0.85,
		},
		DiskFinalSize:   1435,
		CompositeRadius: 700,
		FeatherRadius:   40,
		CanvasW:         1920,
		CanvasH:         1435,
		CropRect:        image.Rect(230, 117, 230+1460, 117+1200),
		JPEGQuality:     95,
	}
}

// Validate checks the geometric contracts the Compositor requires.
func (c Config) Validate() error {
	if c.CompositeRadius >= c.DiskFinalSize/2 {
		return errGeometry("compositeRadius must be < diskFinalSize/2")
	}
	if c.CropRect.Dx() <= 0 || c.CropRect.Dy() <= 0 {
		return errGeometry("cropRect must have positive area")
	}
	if c.CropRect.Max.X > c.CanvasW || c.CropRect.Max.Y > c.CanvasH {
		return errGeometry("cropRect must lie within the canvas")
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		return errGeometry("jpegQuality must be in (0,100]")
	}
	return nil
}

type geometryError string

func (e geometryError) Error() string { return "composite: " + string(e) }

func errGeometry(msg string) error { return geometryError(msg) }
