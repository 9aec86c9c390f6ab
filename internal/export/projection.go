// Package export turns stored documents into downloadable structured forms.
package export

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docforge/internal/entity"
)

const (
	TypeTable   = "table"
	TypeSlides  = "slides"
	TypeText    = "text"
	TypeUnknown = "unknown"

	noContentMessage = "No extracted content available."
)

// Projection is the structured JSON form of a document. Only the fields
// of its Type are set.
type Projection struct {
	Type       string              `json:"type"`
	Headers    []string            `json:"headers,omitempty"`
	Rows       []map[string]string `json:"rows,omitempty"`
	SlideCount int                 `json:"slideCount,omitempty"`
	Slides     []SlideContent      `json:"slides,omitempty"`
	Content    string              `json:"content,omitempty"`
	Message    string              `json:"message,omitempty"`
}

type SlideContent struct {
	Slide   string `json:"slide"`
	Content string `json:"content"`
}

var reSlideMarker = regexp.MustCompile(`(?m)^--- Slide: (.+?) ---$`)

// Project picks the projection for doc: table records first, then
// slide-marked text, then plain text.
func Project(doc *entity.Document) Projection {
	if doc.IsTable && len(doc.TableRows) > 0 {
		headers := doc.Headers
		if len(headers) == 0 {
			headers = sortedKeys(doc.TableRows)
		}
		// an empty Rows would be dropped by omitempty
		rows := make([]map[string]string, 0, len(doc.TableRows))
		rows = append(rows, doc.TableRows...)
		return Projection{Type: TypeTable, Headers: headers, Rows: rows}
	}
	if slides := splitSlides(doc.ExtractedText); len(slides) > 0 {
		return Projection{Type: TypeSlides, SlideCount: len(slides), Slides: slides}
	}
	if strings.TrimSpace(doc.ExtractedText) != "" {
		return Projection{Type: TypeText, Content: doc.ExtractedText}
	}
	return Projection{Type: TypeUnknown, Message: noContentMessage}
}

func splitSlides(text string) []SlideContent {
	locs := reSlideMarker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]SlideContent, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, SlideContent{
			Slide:   text[loc[2]:loc[3]],
			Content: strings.TrimSpace(text[loc[1]:end]),
		})
	}
	return out
}

//go:embed schema/projection.json
var projectionSchema []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("projection.json", bytes.NewReader(projectionSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("projection.json")
})

// MarshalProjection encodes p and checks the result against the projection schema.
func MarshalProjection(p Projection) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal projection: %w", err)
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("unmarshal projection: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("projection does not match schema: %w", err)
	}
	return b, nil
}
