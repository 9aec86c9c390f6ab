package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/joseph-ayodele/docforge/constants"
)

type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// Extract returns the file bytes as-is; invalid UTF-8 is left for the cleaner.
func (TextExtractor) Extract(_ context.Context, path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{Method: constants.MethodTextFailed}, fmt.Errorf("read text: %w", err)
	}
	return Result{Text: string(b), Method: constants.MethodTextRaw, Pages: 1}, nil
}
