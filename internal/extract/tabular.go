package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/ocr"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is the first sheet of a spreadsheet, split into header and records.
type Table struct {
	Headers []string
	Rows    []map[string]string
	Text    string
}

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// tabularFormat picks the reader by extension. Files classified by media
// type alone have none, so their leading bytes decide: a zip container is
// xlsx, an OLE compound file is xls, anything else is read as CSV.
func tabularFormat(path string) string {
	switch ext := constants.NormalizeExt(filepath.Ext(path)); ext {
	case "csv", "xls", "xlsx":
		return ext
	}
	f, err := os.Open(path)
	if err != nil {
		return "csv" // the CSV reader reports the open error
	}
	defer f.Close()
	head := make([]byte, len(cfbMagic))
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return "xlsx"
	case bytes.HasPrefix(head, cfbMagic):
		return "xls"
	default:
		return "csv"
	}
}

// TabularExtractor reads CSV directly, xlsx with excelize, and converts xls
// to xlsx through LibreOffice first.
type TabularExtractor struct {
	soffice     string
	workDir     string
	stepTimeout time.Duration
	runner      ocr.Runner
	logger      *slog.Logger
}

func NewTabularExtractor(soffice, workDir string, stepTimeout time.Duration, runner ocr.Runner, logger *slog.Logger) *TabularExtractor {
	if soffice == "" {
		soffice = "soffice"
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TabularExtractor{soffice: soffice, workDir: workDir, stepTimeout: stepTimeout, runner: runner, logger: logger}
}

func (e *TabularExtractor) Extract(ctx context.Context, path string) (Result, error) {
	var (
		raw    [][]string
		method string
		err    error
	)
	switch tabularFormat(path) {
	case "csv":
		method = constants.MethodTableCSV
		raw, err = readCSV(path)
	case "xls":
		method = constants.MethodTableXLS
		raw, err = e.readXLS(ctx, path)
	default:
		method = constants.MethodTableXLSX
		raw, err = readFirstSheet(path)
	}
	if err != nil {
		return Result{Method: constants.MethodTableFailed}, err
	}

	t := BuildTable(raw)
	return Result{
		Text:      t.Text,
		TableRows: t.Rows,
		Headers:   t.Headers,
		IsTable:   len(t.Rows) > 0,
		Method:    method,
		Pages:     1,
	}, nil
}

// BuildTable turns raw rows into headers and keyed records. Blank header
// cells are named "Column <i>" by 0-based position. Text keeps every row,
// the header included, with tab separated cells.
func BuildTable(raw [][]string) Table {
	lines := make([]string, 0, len(raw))
	var nonBlank [][]string
	for _, row := range raw {
		if isBlankRow(row) {
			continue
		}
		nonBlank = append(nonBlank, row)
		lines = append(lines, strings.Join(row, "\t"))
	}
	t := Table{Headers: []string{}, Text: strings.Join(lines, "\n")}
	if len(nonBlank) == 0 {
		return t
	}

	for i, h := range nonBlank[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column " + strconv.Itoa(i)
		}
		t.Headers = append(t.Headers, h)
	}
	for _, row := range nonBlank[1:] {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			rec[h] = v
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string) ([][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// readFirstSheet returns the rows of the workbook's first sheet.
func readFirstSheet(path string) ([][]string, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer src.Close()
	// OpenReader, since media-type-classified uploads carry no extension
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func (e *TabularExtractor) readXLS(ctx context.Context, path string) ([][]string, error) {
	tmpDir, err := os.MkdirTemp(e.workDir, "xls-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	ctx, cancel := ocr.WithStepTimeout(ctx, e.stepTimeout)
	defer cancel()

	// soffice --headless --convert-to xlsx --outdir <tmp> <in.xls>
	_, errb, err := e.runner.Run(ctx, e.soffice, e.logger, "--headless", "--convert-to", "xlsx", "--outdir", tmpDir, path)
	if err != nil {
		return nil, fmt.Errorf("soffice convert xls: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return readFirstSheet(filepath.Join(tmpDir, base+".xlsx"))
}
