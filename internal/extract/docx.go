package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"code.sajari.com/docconv/v2"

	"github.com/joseph-ayodele/docforge/constants"
)

// DocxExtractor tries docconv first and falls back to reading
// word/document.xml directly when docconv errors or yields nothing.
type DocxExtractor struct {
	logger *slog.Logger
}

func NewDocxExtractor(logger *slog.Logger) *DocxExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocxExtractor{logger: logger}
}

func (e *DocxExtractor) Extract(_ context.Context, path string) (Result, error) {
	var warnings []string

	text, err := convertWith(path, docconv.ConvertDocx)
	switch {
	case err != nil:
		e.logger.Warn("docx.docconv.failed", "path", path, "error", err)
		warnings = append(warnings, "docconv: "+err.Error())
	case strings.TrimSpace(text) != "":
		return Result{Text: text, Method: constants.MethodDocxDocconv}, nil
	}

	text, err = readDocxXML(path)
	if err != nil {
		return Result{Method: constants.MethodDocxUnavailable, Warnings: warnings}, fmt.Errorf("read docx: %w", err)
	}
	return Result{Text: text, Method: constants.MethodDocxXML, Warnings: warnings}, nil
}

// convertWith runs a docconv converter on the file; docconv panics on some
// malformed archives, which are reported as errors.
func convertWith(path string, conv func(io.Reader) (string, map[string]string, error)) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("docconv panic: %v", p)
		}
	}()
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	text, _, err = conv(f)
	return text, err
}

// readDocxXML concatenates w:t runs; paragraphs become lines, w:tab a tab
// and w:br a line break. Formatting is discarded.
func readDocxXML(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var (
		out    strings.Builder
		inText bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteString("\t")
			case "br", "cr":
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
