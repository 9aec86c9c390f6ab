package extract

import (
	"context"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/ocr"
)

// ImageExtractor runs the OCR engine over a single image.
type ImageExtractor struct {
	engine ocr.Engine
}

func NewImageExtractor(engine ocr.Engine) *ImageExtractor {
	return &ImageExtractor{engine: engine}
}

func (e *ImageExtractor) Extract(ctx context.Context, path string) (Result, error) {
	rec, err := e.engine.Recognize(ctx, path)
	if err != nil {
		return Result{Method: constants.MethodImageOCRFailed, Warnings: rec.Warnings, Duration: rec.Duration}, err
	}
	return Result{
		Text:     rec.Text,
		Method:   constants.MethodImageOCR,
		Warnings: rec.Warnings,
		Pages:    1,
		Duration: rec.Duration,
	}, nil
}
