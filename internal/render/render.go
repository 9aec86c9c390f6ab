// Package render writes the canonical PDF kept for every ingested document.
package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	margin = 40.0

	bodyFont     = "Helvetica"
	bodySize     = 10.0
	monoFont     = "Courier"
	monoSize     = 9.0
	listIndent   = 15.0
	lineSpacing  = 1.2
	cellPadding  = 2.0
	emptyMessage = "No readable textual content found."

	tablePadding   = 4.0
	tableRowHeight = 20.0
	tableFontSize  = 10.0
	noTableMessage = "No table data available."
	ellipsis       = "..."
)

type rgb struct{ r, g, b int }

var (
	headerFill = rgb{0xf3, 0xf4, 0xf6}
	altRowFill = rgb{0xf9, 0xfa, 0xfb}
	tableText  = rgb{0x11, 0x18, 0x27}
)

type Renderer struct {
	pdfDir string
	logger *slog.Logger
}

func NewRenderer(pdfDir string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{pdfDir: pdfDir, logger: logger}
}

// PathFor is where the canonical PDF of a stored upload lives.
func (r *Renderer) PathFor(storedName string) string {
	base := strings.TrimSuffix(filepath.Base(storedName), filepath.Ext(storedName))
	return filepath.Join(r.pdfDir, base+".pdf")
}

type doc struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	pageW float64
	pageH float64
}

func newDoc() *doc {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	w, h := pdf.GetPageSize()
	return &doc{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		pageW: w - 2*margin,
		pageH: h,
	}
}

func (d *doc) save(outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create pdf dir: %w", err)
	}
	if err := d.pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// RenderText lays out cleaned text line by line. Empty text still yields
// a one-page PDF carrying a placeholder.
func (r *Renderer) RenderText(text, outPath string) error {
	d := newDoc()
	pdf := d.pdf

	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		pdf.SetFont("Times", "", 12)
		pdf.MultiCell(d.pageW, 12*lineSpacing, emptyMessage, "", "L", false)
		return d.save(outPath)
	}

	lines := strings.Split(text, "\n")
	for _, raw := range lines {
		l := ClassifyLine(raw)
		switch l.Kind {
		case LineHeader:
			size := HeaderSize(l.Level)
			pdf.Ln(bodySize * lineSpacing * 0.5)
			pdf.SetFont(bodyFont, "B", size)
			pdf.MultiCell(d.pageW, size*lineSpacing, d.tr(l.Text), "", "L", false)
			pdf.Ln(bodySize * lineSpacing * 0.2)
		case LineTableSeparator:
			continue
		case LineTableRow:
			d.tableRow(l.Cells)
		case LineListItem:
			pdf.SetFont(bodyFont, "", bodySize)
			pdf.SetX(margin + listIndent)
			pdf.MultiCell(d.pageW-listIndent, bodySize*lineSpacing, d.tr(l.Text), "", "L", false)
		case LineBlank:
			pdf.Ln(bodySize * lineSpacing * 0.5)
		case LineMonospace:
			pdf.SetFont(monoFont, "", monoSize)
			pdf.MultiCell(d.pageW, monoSize*lineSpacing, d.tr(strings.TrimRight(l.Raw, " \t")), "", "L", false)
		default:
			pdf.SetFont(bodyFont, "", bodySize)
			pdf.MultiCell(d.pageW, bodySize*lineSpacing, d.tr(l.Raw), "", "J", false)
		}

		if pdf.GetY() > d.pageH-2*margin {
			pdf.AddPage()
		}
	}

	r.logger.Debug("render.text", "path", outPath, "lines", len(lines), "pages", pdf.PageCount())
	return d.save(outPath)
}

// tableRow draws one markdown pipe row with equal column widths. The row is
// moved to a new page whole if it would not fit.
func (d *doc) tableRow(cells []string) {
	if len(cells) == 0 {
		return
	}
	pdf := d.pdf
	pdf.SetFont(monoFont, "", monoSize)
	lh := monoSize * lineSpacing
	colW := d.pageW / float64(len(cells))

	wrapped := make([][]string, len(cells))
	maxLines := 1
	for i, c := range cells {
		wrapped[i] = pdf.SplitText(d.tr(c), colW-2*cellPadding)
		maxLines = max(maxLines, len(wrapped[i]))
	}
	height := float64(maxLines)*lh + 2*cellPadding
	if pdf.GetY()+height > d.pageH-margin {
		pdf.AddPage()
	}

	startY := pdf.GetY()
	for i, lines := range wrapped {
		x := margin + float64(i)*colW + cellPadding
		for j, ln := range lines {
			pdf.SetXY(x, startY+cellPadding+float64(j)*lh)
			pdf.CellFormat(colW-2*cellPadding, lh, ln, "", 0, "L", false, 0, "")
		}
	}
	pdf.SetXY(margin, startY+height)
}

// RenderTable draws records as a grid. Columns follow headers, or the first
// record's keys in sorted order when headers is empty. The header row is
// repeated at the top of every page.
func (r *Renderer) RenderTable(headers []string, rows []map[string]string, outPath string) error {
	d := newDoc()
	pdf := d.pdf
	pdf.SetAutoPageBreak(false, margin)

	var cols []string
	if len(rows) > 0 {
		cols = columns(headers, rows)
	}
	if len(cols) == 0 {
		pdf.SetFont(bodyFont, "", bodySize)
		pdf.MultiCell(d.pageW, bodySize*lineSpacing, noTableMessage, "", "L", false)
		return d.save(outPath)
	}

	colW := d.pageW / float64(len(cols))
	pdf.SetFont(bodyFont, "", tableFontSize)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)

	y := margin
	drawHeader := func() {
		pdf.SetFillColor(headerFill.r, headerFill.g, headerFill.b)
		for i, h := range cols {
			x := margin + float64(i)*colW
			pdf.Rect(x, y, colW, tableRowHeight, "FD")
			d.cellText(x, y, colW, h)
		}
		y += tableRowHeight
	}
	ensureSpaceForRow := func() {
		if y+tableRowHeight > d.pageH-margin {
			pdf.AddPage()
			y = margin
			drawHeader()
		}
	}

	drawHeader()
	for idx, row := range rows {
		ensureSpaceForRow()
		style := "D"
		if idx%2 == 1 {
			pdf.SetFillColor(altRowFill.r, altRowFill.g, altRowFill.b)
			style = "FD"
		}
		for i, h := range cols {
			x := margin + float64(i)*colW
			pdf.Rect(x, y, colW, tableRowHeight, style)
			d.cellText(x, y, colW, row[h])
		}
		y += tableRowHeight
	}

	r.logger.Debug("render.table", "path", outPath, "rows", len(rows), "cols", len(cols), "pages", pdf.PageCount())
	return d.save(outPath)
}

func (d *doc) cellText(x, y, colW float64, s string) {
	pdf := d.pdf
	w := colW - 2*tablePadding
	pdf.SetTextColor(tableText.r, tableText.g, tableText.b)
	pdf.SetXY(x+tablePadding, y)
	pdf.CellFormat(w, tableRowHeight, d.fit(s, w), "", 0, "LM", false, 0, "")
}

// fit truncates s with an ellipsis until it fits width w, returning the
// translated string ready for output.
func (d *doc) fit(s string, w float64) string {
	s = strings.Join(strings.Fields(s), " ")
	out := d.tr(s)
	if d.pdf.GetStringWidth(out) <= w {
		return out
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		out = d.tr(string(runes[:n]) + ellipsis)
		if d.pdf.GetStringWidth(out) <= w {
			return out
		}
	}
	return d.tr(ellipsis)
}

func columns(headers []string, rows []map[string]string) []string {
	if len(headers) > 0 {
		return headers
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
