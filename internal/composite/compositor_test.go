package composite

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func synthImage(w, h int, r, g, b uint8) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func testConfig() Config {
	cfg := DefaultConfig()
	// Shrink geometry so tests run fast.
	cfg.CanvasW, cfg.CanvasH = 400, 400
	cfg.DiskFinalSize = 300
	cfg.CompositeRadius = 120
	cfg.FeatherRadius = 20
	cfg.CropRect = image.Rect(10, 10, 390, 390)
	return cfg
}

func TestComposeProducesExpectedDimensions(t *testing.T) {
	cfg := testConfig()
	c, err := New(cfg)
	require.NoError(t, err)

	corona := synthImage(400, 400, 200, 120, 40)
	disk := synthImage(300, 300, 255, 255, 255)

	out, err := c.Compose(corona, disk)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	w, h := c.Dimensions()
	require.Equal(t, w, img.Bounds().Dx())
	require.Equal(t, h, img.Bounds().Dy())
}

func TestComposeIsDeterministic(t *testing.T) {
	cfg := testConfig()
	c, err := New(cfg)
	require.NoError(t, err)

	corona := synthImage(400, 400, 180, 90, 30)
	disk := synthImage(300, 300, 240, 240, 240)

	out1, err := c.Compose(corona, disk)
	require.NoError(t, err)
	out2, err := c.Compose(corona, disk)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

func TestComposeInvalidSourceIsCompositeError(t *testing.T) {
	cfg := testConfig()
	c, err := New(cfg)
	require.NoError(t, err)
	_, err = c.Compose([]byte("not an image"), synthImage(300, 300, 1, 1, 1))
	require.Error(t, err)
}

func TestConfigValidateRejectsBadGeometry(t *testing.T) {
	cfg := testConfig()
	cfg.CompositeRadius = cfg.DiskFinalSize // violates < DiskFinalSize/2
	_, err := New(cfg)
	require.Error(t, err)
}

func TestFeatherAlphaFalloff(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	out := feather(src, 200, 80, 20)
	center := out.NRGBAAt(100, 100)
	edge := out.NRGBAAt(5, 5)
	require.Equal(t, uint8(255), center.A)
	require.Equal(t, uint8(0), edge.A)
}
