package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/docforge/internal/common"
)

func TestOCRConfig(t *testing.T) {
	cfg := &common.Config{}
	cfg.OCR.Language = "deu"
	cfg.OCR.DPI = 200
	cfg.OCR.TSVConfidence = true
	cfg.Pipeline.StepTimeout = time.Minute
	cfg.Storage.WorkDir = "/var/docforge/work"

	got := OCRConfig(cfg)
	assert.Equal(t, "deu", got.Language)
	assert.Equal(t, 200, got.DPI)
	assert.True(t, got.EnableTSVConfidence)
	assert.Equal(t, time.Minute, got.StepTimeout)
	assert.Equal(t, "/var/docforge/work", got.WorkDir)
}
