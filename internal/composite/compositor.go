// Package composite implements the Compositor: a deterministic pipeline
// that color-grades the Corona and Disk layers, feathers and screen-blends
// them onto a canvas, crops, and encodes one frame as JPEG (spec.md §4.4).
package composite

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	// Registered for side-effect decoding of PNG/JPEG upstream bodies.
	_ "image/png"

	"github.com/solarlapse/heliopipe/internal/errs"
)

// Compositor runs the frame-composition pipeline for a fixed Config.
type Compositor struct {
	cfg Config
}

// New builds a Compositor for the given (validated) Config.
func New(cfg Config) (*Compositor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.New(errs.CompositeError, "composite.New", err)
	}
	return &Compositor{cfg: cfg}, nil
}

// Compose runs the full pipeline over raw corona/disk image bytes and
// returns an encoded JPEG frame. It is a pure function of its inputs and
// the Compositor's Config: identical inputs produce byte-identical output.
func (c *Compositor) Compose(coronaBytes, diskBytes []byte) ([]byte, error) {
	corona, err := decode(coronaBytes)
	if err != nil {
		return nil, errs.New(errs.CompositeError, "composite.Compose.decodeCorona", err)
	}
	disk, err := decode(diskBytes)
	if err != nil {
		return nil, errs.New(errs.CompositeError, "composite.Compose.decodeDisk", err)
	}

	gradedCorona := grade(toNRGBA(corona), c.cfg.Corona)
	gradedDisk := grade(toNRGBA(disk), c.cfg.Disk)

	featheredDisk := feather(gradedDisk, c.cfg.DiskFinalSize, c.cfg.CompositeRadius, c.cfg.FeatherRadius)

	canvas := image.NewNRGBA(image.Rect(0, 0, c.cfg.CanvasW, c.cfg.CanvasH))
	centerOver(canvas, gradedCorona)
	centerScreen(canvas, featheredDisk)

	cropped := cropTo(canvas, c.cfg.CropRect)

	out, err := encodeJPEG(cropped, c.cfg.JPEGQuality)
	if err != nil {
		return nil, errs.New(errs.CompositeError, "composite.Compose.encode", err)
	}
	return out, nil
}

// Dimensions returns the (width, height) every successfully composed frame
// must decode to: the crop rectangle's size.
func (c *Compositor) Dimensions() (int, int) {
	return c.cfg.CropRect.Dx(), c.cfg.CropRect.Dy()
}

func decode(b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	return img, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

func cropTo(img *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	// Progressive layout disabled: stdlib image/jpeg only emits baseline
	// JPEG, matching spec.md §4.4 step 6's "progressive layout disabled".
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
