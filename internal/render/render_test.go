package render

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPDFText(t *testing.T, path string) string {
	t.Helper()
	f, r, err := pdf.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		require.NoError(t, err)
		b.WriteString(s)
	}
	return b.String()
}

func pageCount(t *testing.T, path string) int {
	t.Helper()
	n, err := api.PageCountFile(path)
	require.NoError(t, err)
	return n
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		in   string
		kind LineKind
	}{
		{"## Results", LineHeader},
		{"| a | b |", LineTableRow},
		{"|---|---|", LineTableSeparator},
		{"| === | === |", LineTableSeparator},
		{"- first", LineListItem},
		{"* second", LineListItem},
		{"12. twelfth", LineListItem},
		{"   ", LineBlank},
		{"Name    Qty", LineMonospace},
		{"a | b", LineMonospace},
		{"Just a sentence.", LineParagraph},
		{"-dash without space", LineParagraph},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.kind, ClassifyLine(tt.in).Kind)
		})
	}
}

func TestClassifyLine_HeaderAndCells(t *testing.T) {
	h := ClassifyLine("###   Deep header")
	assert.Equal(t, 3, h.Level)
	assert.Equal(t, "Deep header", h.Text)

	row := ClassifyLine("| Name |  | Qty |")
	assert.Equal(t, []string{"Name", "Qty"}, row.Cells)
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, 16.0, HeaderSize(1))
	assert.Equal(t, 14.0, HeaderSize(2))
	assert.Equal(t, 12.0, HeaderSize(3))
	assert.Equal(t, 12.0, HeaderSize(6))
}

func TestRenderer_PathFor(t *testing.T) {
	r := NewRenderer("/data/pdfs", nil)
	assert.Equal(t, filepath.Join("/data/pdfs", "report-1700000000000.pdf"), r.PathFor("report-1700000000000.docx"))
}

func TestRenderText_EmptyPlaceholder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pdfs", "empty.pdf")
	require.NoError(t, NewRenderer("", nil).RenderText("  \n\n ", out))

	assert.Equal(t, 1, pageCount(t, out))
	assert.Contains(t, readPDFText(t, out), "No readable textual content found.")
}

func TestRenderText_MixedContent(t *testing.T) {
	out := filepath.Join(t.TempDir(), "mixed.pdf")
	text := "# Title\n\nIntro paragraph with café text.\n\n| Item | Qty |\n|---|---|\n| Apple | 3 |\n- bullet one\nName    Value"
	require.NoError(t, NewRenderer("", nil).RenderText(text, out))

	got := readPDFText(t, out)
	assert.Contains(t, got, "Title")
	assert.Contains(t, got, "Apple")
	assert.NotContains(t, got, "---")
}

func TestRenderText_Paginates(t *testing.T) {
	out := filepath.Join(t.TempDir(), "long.pdf")
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "Paragraph line number %d with some words.\n", i)
	}
	require.NoError(t, NewRenderer("", nil).RenderText(b.String(), out))
	assert.Greater(t, pageCount(t, out), 1)
}

func TestRenderTable_Empty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "t.pdf")
	require.NoError(t, NewRenderer("", nil).RenderTable(nil, nil, out))
	assert.Contains(t, readPDFText(t, out), "No table data available.")
}

func TestRenderTable_PaginatesAndTruncates(t *testing.T) {
	out := filepath.Join(t.TempDir(), "t.pdf")
	rows := make([]map[string]string, 0, 80)
	for i := 0; i < 80; i++ {
		rows = append(rows, map[string]string{
			"sku":  fmt.Sprintf("SKU-%03d", i),
			"note": strings.Repeat("very long description ", 20),
		})
	}
	require.NoError(t, NewRenderer("", nil).RenderTable([]string{"sku", "note"}, rows, out))

	assert.Greater(t, pageCount(t, out), 1)
	got := readPDFText(t, out)
	assert.Contains(t, got, "SKU-079")
	assert.Contains(t, got, "...")
}

func TestColumns_DefaultsToSortedKeys(t *testing.T) {
	rows := []map[string]string{{"b": "2", "a": "1"}}
	assert.Equal(t, []string{"a", "b"}, columns(nil, rows))
	assert.Equal(t, []string{"b"}, columns([]string{"b"}, rows))
}
