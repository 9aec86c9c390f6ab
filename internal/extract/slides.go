package extract

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/slides"
)

// SlidesExtractor hands decks to the slide converter. The stored file's
// base name keys the converter's working directory.
type SlidesExtractor struct {
	conv *slides.Converter
}

func NewSlidesExtractor(conv *slides.Converter) *SlidesExtractor {
	return &SlidesExtractor{conv: conv}
}

func (e *SlidesExtractor) Extract(ctx context.Context, path string) (Result, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tr, err := e.conv.Convert(ctx, path, base)
	if err != nil {
		return Result{Method: constants.MethodSlidesOCR}, err
	}
	return Result{
		Text:     tr.Text,
		Method:   constants.MethodSlidesOCR,
		Warnings: tr.Warnings,
		Pages:    len(tr.Slides),
	}, nil
}
