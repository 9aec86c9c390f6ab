package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/ocr"
	"github.com/joseph-ayodele/docforge/internal/slides"
)

type Deps struct {
	Engine      ocr.Engine
	Slides      *slides.Converter // nil leaves decks on the text fallback
	Runner      ocr.Runner
	Soffice     string
	WorkDir     string
	StepTimeout time.Duration
	Logger      *slog.Logger
}

// NewDefaultRegistry registers one strategy per supported kind.
func NewDefaultRegistry(d Deps) *Registry {
	text := NewTextExtractor()
	r := NewRegistry(text, d.Logger)
	r.Register(constants.KindText, text)
	r.Register(constants.KindPDF, NewPDFExtractor(d.Logger))
	r.Register(constants.KindDocx, NewDocxExtractor(d.Logger))
	r.Register(constants.KindDoc, NewDocExtractor())
	r.Register(constants.KindTabular, NewTabularExtractor(d.Soffice, d.WorkDir, d.StepTimeout, d.Runner, d.Logger))
	if d.Engine != nil {
		r.Register(constants.KindImage, NewImageExtractor(d.Engine))
	} else {
		r.Register(constants.KindImage, ExtractorFunc(func(context.Context, string) (Result, error) {
			return Result{Method: constants.MethodImageOCRFailed}, errors.New("ocr engine not configured")
		}))
	}
	if d.Slides != nil {
		r.Register(constants.KindSlideDeck, NewSlidesExtractor(d.Slides))
	}
	return r
}
