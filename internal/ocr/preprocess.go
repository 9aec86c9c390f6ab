package ocr

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// sharpenSigma is tuned for 300 DPI scans.
const sharpenSigma = 1.0

// Preprocess converts the image at src to grayscale, stretches its contrast to
// the full range and sharpens it. The result is written as PNG into dstDir and
// its path returned.
func Preprocess(src, dstDir string) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	gray := imaging.Grayscale(img)
	norm := NormalizeContrast(gray)
	sharp := imaging.Sharpen(norm, sharpenSigma)

	out := filepath.Join(dstDir, "preprocessed.png")
	if err := imaging.Save(sharp, out); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return out, nil
}

// NormalizeContrast linearly maps the darkest luminance to 0 and the
// brightest to 255. Flat images are returned unchanged.
func NormalizeContrast(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return img
	}
	scale := 255.0 / float64(hi-lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := stretch(c.R, lo, scale)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

func stretch(v, lo uint8, scale float64) uint8 {
	f := math.Round(float64(int(v)-int(lo)) * scale)
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	default:
		return uint8(f)
	}
}
