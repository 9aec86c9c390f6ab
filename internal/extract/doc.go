package extract

import (
	"context"
	"fmt"

	"code.sajari.com/docconv/v2"

	"github.com/joseph-ayodele/docforge/constants"
)

// DocExtractor reads legacy Word files through docconv, which shells out to
// antiword/wvText. Without those tools the result degrades to empty text.
type DocExtractor struct{}

func NewDocExtractor() *DocExtractor { return &DocExtractor{} }

func (DocExtractor) Extract(_ context.Context, path string) (Result, error) {
	text, err := convertWith(path, docconv.ConvertDoc)
	if err != nil {
		return Result{Method: constants.MethodDocUnavailable}, fmt.Errorf("convert doc: %w", err)
	}
	return Result{Text: text, Method: constants.MethodDocDocconv}, nil
}
