package extract

import (
	"context"
	"time"
)

// Extractor turns one stored file into text and, for spreadsheets, records.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (Result, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (Result, error) { return f(ctx, path) }

type Result struct {
	Text      string
	TableRows []map[string]string
	Headers   []string // column order of TableRows
	IsTable   bool
	Method    string
	Warnings  []string
	Pages     int
	Duration  time.Duration
}

// normalize enforces IsTable iff there is at least one record.
func (r *Result) normalize() {
	if len(r.TableRows) == 0 {
		r.TableRows = nil
		r.IsTable = false
		return
	}
	r.IsTable = true
}
