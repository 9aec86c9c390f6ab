package extract

import (
	"archive/zip"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/entity"
	"github.com/joseph-ayodele/docforge/internal/ocr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestTextExtractor_ReturnsBytesUnchanged(t *testing.T) {
	p := writeFile(t, t.TempDir(), "notes.txt", "line one\r\n\n  spaced  \n")
	res, err := NewTextExtractor().Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "line one\r\n\n  spaced  \n", res.Text)
	assert.Equal(t, constants.MethodTextRaw, res.Method)
	assert.False(t, res.IsTable)
}

func TestRegistry_UnknownKindUsesTextFallback(t *testing.T) {
	p := writeFile(t, t.TempDir(), "data.xyz", "plain payload")
	r := NewDefaultRegistry(Deps{Logger: slog.Default()})

	res := r.Extract(context.Background(), constants.KindUnknown, p)
	assert.Equal(t, "plain payload", res.Text)
	assert.Equal(t, constants.MethodTextRaw, res.Method)
}

func TestRegistry_ErrorDegrades(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(constants.KindDoc, ExtractorFunc(func(context.Context, string) (Result, error) {
		return Result{Text: "partial", Method: constants.MethodDocUnavailable}, errors.New("antiword: not found")
	}))

	res := r.Extract(context.Background(), constants.KindDoc, "/x.doc")
	assert.Empty(t, res.Text)
	assert.Equal(t, constants.MethodDocUnavailable, res.Method)
	assert.Contains(t, res.Warnings, "antiword: not found")
	assert.False(t, res.IsTable)
}

func TestRegistry_PanicDegrades(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(constants.KindPDF, ExtractorFunc(func(context.Context, string) (Result, error) {
		panic("malformed xref")
	}))

	res := r.Extract(context.Background(), constants.KindPDF, "/x.pdf")
	assert.Empty(t, res.Text)
	assert.Equal(t, constants.MethodExtractFailed, res.Method)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "malformed xref")
}

func TestRegistry_IsTableRequiresRows(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(constants.KindTabular, ExtractorFunc(func(context.Context, string) (Result, error) {
		return Result{IsTable: true, TableRows: []map[string]string{}}, nil
	}))
	res := r.Extract(context.Background(), constants.KindTabular, "/x.csv")
	assert.False(t, res.IsTable)
	assert.Nil(t, res.TableRows)
}

func TestBuildTable(t *testing.T) {
	tbl := BuildTable([][]string{
		{"name", "", " age "},
		{"Ann", "x", "30"},
		{"", "", ""},
		{"Bob"},
	})
	assert.Equal(t, []string{"name", "Column 1", "age"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, map[string]string{"name": "Ann", "Column 1": "x", "age": "30"}, tbl.Rows[0])
	assert.Equal(t, map[string]string{"name": "Bob", "Column 1": "", "age": ""}, tbl.Rows[1])
	assert.Equal(t, "name\t\t age \nAnn\tx\t30\nBob", tbl.Text)
}

func TestBuildTable_Empty(t *testing.T) {
	tbl := BuildTable(nil)
	assert.Empty(t, tbl.Headers)
	assert.Nil(t, tbl.Rows)
	assert.Equal(t, "", tbl.Text)
}

func TestTabularExtractor_CSV(t *testing.T) {
	p := writeFile(t, t.TempDir(), "people.csv", "\ufeffname,city\nAnn,\"Oslo, NO\"\nBob,Rome,extra\n")
	res, err := NewTabularExtractor("", "", 0, nil, nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, res.IsTable)
	assert.Equal(t, constants.MethodTableCSV, res.Method)
	assert.Equal(t, []string{"name", "city"}, res.Headers)
	assert.Equal(t, []map[string]string{
		{"name": "Ann", "city": "Oslo, NO"},
		{"name": "Bob", "city": "Rome"},
	}, res.TableRows)
	assert.Equal(t, "name\tcity\nAnn\tOslo, NO\nBob\tRome\textra", res.Text)
}

func TestTabularExtractor_EmptyCSV(t *testing.T) {
	p := writeFile(t, t.TempDir(), "empty.csv", "")
	res, err := NewTabularExtractor("", "", 0, nil, nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.IsTable)
	assert.Empty(t, res.Headers)
}

func TestTabularExtractor_XLSXFirstSheetOnly(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"sku", "qty"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"A-1", 4}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]any{"ignored"}))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	res, err := NewTabularExtractor("", dir, 0, nil, nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodTableXLSX, res.Method)
	assert.Equal(t, []string{"sku", "qty"}, res.Headers)
	assert.Equal(t, []map[string]string{{"sku": "A-1", "qty": "4"}}, res.TableRows)
	assert.NotContains(t, res.Text, "ignored")
}

func TestTabularExtractor_ExtensionlessUsesContent(t *testing.T) {
	dir := t.TempDir()
	ex := NewTabularExtractor("", dir, 0, nil, nil)

	csvPath := writeFile(t, dir, "upload-1700000000000", "name,qty\nbolt,3\n")
	res, err := ex.Extract(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodTableCSV, res.Method)
	assert.Equal(t, []map[string]string{{"name": "bolt", "qty": "3"}}, res.TableRows)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"sku"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"B-7"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	xlsxPath := writeFile(t, dir, "sheet-1700000000000", buf.String())

	res, err = ex.Extract(context.Background(), xlsxPath)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodTableXLSX, res.Method)
	assert.Equal(t, []map[string]string{{"sku": "B-7"}}, res.TableRows)
}

func TestTabularFormat(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "xls", tabularFormat(filepath.Join(dir, "a.XLS")))
	assert.Equal(t, "xls", tabularFormat(writeFile(t, dir, "legacy", string([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}))))
	assert.Equal(t, "xlsx", tabularFormat(writeFile(t, dir, "zipped", "PK\x03\x04rest")))
	assert.Equal(t, "csv", tabularFormat(writeFile(t, dir, "short", "a")))
	assert.Equal(t, "csv", tabularFormat(filepath.Join(dir, "missing")))
}

type stubRunner struct {
	fn func(name string, args []string) ([]byte, []byte, error)
}

func (s stubRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	return s.fn(name, args)
}

func TestTabularExtractor_XLSConvertsThroughSoffice(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "legacy.xls", "binary")

	var got []string
	r := stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		got = append([]string{name}, args...)
		outDir := args[len(args)-2]
		f := excelize.NewFile()
		defer f.Close()
		if err := f.SetSheetRow("Sheet1", "A1", &[]any{"h1"}); err != nil {
			return nil, nil, err
		}
		if err := f.SetSheetRow("Sheet1", "A2", &[]any{"v1"}); err != nil {
			return nil, nil, err
		}
		return nil, nil, f.SaveAs(filepath.Join(outDir, "legacy.xlsx"))
	}}

	res, err := NewTabularExtractor("lo", dir, 0, r, nil).Extract(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodTableXLS, res.Method)
	assert.Equal(t, []map[string]string{{"h1": "v1"}}, res.TableRows)
	assert.Equal(t, []string{"lo", "--headless", "--convert-to", "xlsx", "--outdir"}, got[:5])
	assert.Equal(t, src, got[len(got)-1])
}

func writeDocx(t *testing.T, path string, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestReadDocxXML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "memo.docx")
	writeDocx(t, p,
		`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Col A</w:t><w:tab/><w:t>Col B</w:t></w:r></w:p>`)

	text, err := readDocxXML(p)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nCol A\tCol B", text)
}

func TestDocxExtractor_ExtractsText(t *testing.T) {
	p := filepath.Join(t.TempDir(), "memo.docx")
	writeDocx(t, p, `<w:p><w:r><w:t>Quarterly summary</w:t></w:r></w:p>`)

	res, err := NewDocxExtractor(nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Quarterly summary")
	assert.Contains(t, []string{constants.MethodDocxDocconv, constants.MethodDocxXML}, res.Method)
}

func TestDocxExtractor_NotAZip(t *testing.T) {
	p := writeFile(t, t.TempDir(), "broken.docx", "plain text, not a zip")
	r := NewDefaultRegistry(Deps{})
	res := r.Extract(context.Background(), constants.KindDocx, p)
	assert.Empty(t, res.Text)
	assert.Equal(t, constants.MethodDocxUnavailable, res.Method)
}

func TestPDFExtractor_TextLayer(t *testing.T) {
	p := filepath.Join(t.TempDir(), "report.pdf")
	doc := fpdf.New("P", "pt", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(40, 60, "Quarterly report")
	require.NoError(t, doc.OutputFileAndClose(p))

	res, err := NewPDFExtractor(nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodPDFText, res.Method)
	assert.Contains(t, res.Text, "Quarterly")
	assert.Equal(t, 1, res.Pages)
}

func TestPDFExtractor_ScannedPageNeedsOCR(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "scan.png")
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetGray(1, 1, color.Gray{Y: 0})
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	p := filepath.Join(dir, "scan.pdf")
	doc := fpdf.New("P", "pt", "A4", "")
	doc.AddPage()
	doc.ImageOptions(imgPath, 40, 40, 200, 200, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	require.NoError(t, doc.OutputFileAndClose(p))

	res, err := NewPDFExtractor(nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "", strings.TrimSpace(res.Text))
	assert.Equal(t, constants.MethodPDFEmpty, res.Method)
	assert.Contains(t, res.Warnings, WarningNeedsOCR)
}

func TestPDFExtractor_CorruptDegrades(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.pdf", "%PDF-1.4 garbage")
	res := NewDefaultRegistry(Deps{}).Extract(context.Background(), constants.KindPDF, p)
	assert.Empty(t, res.Text)
	assert.Equal(t, constants.MethodPDFUnavailable, res.Method)
}

type stubPages struct {
	sd  *entity.StructuredData
	err error
}

func (s stubPages) ExtractPages(context.Context, string) (*entity.StructuredData, error) {
	return s.sd, s.err
}

func TestPDFOCRExtractor(t *testing.T) {
	e := NewPDFOCRExtractor(stubPages{sd: entity.NewStructuredData([]string{"first", "", "third"})})
	res, sd, err := e.ExtractStructured(context.Background(), "/scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.MethodPDFOCR, res.Method)
	assert.Equal(t, "first\n\nthird", res.Text)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 3, sd.PageCount)
}

type stubEngine struct {
	rec ocr.Recognition
	err error
}

func (s stubEngine) Recognize(context.Context, string) (ocr.Recognition, error) { return s.rec, s.err }

func TestImageExtractor(t *testing.T) {
	r := NewDefaultRegistry(Deps{Engine: stubEngine{rec: ocr.Recognition{Text: "INVOICE 42"}}})
	res := r.Extract(context.Background(), constants.KindImage, "/scan.png")
	assert.Equal(t, "INVOICE 42", res.Text)
	assert.Equal(t, constants.MethodImageOCR, res.Method)

	r = NewDefaultRegistry(Deps{Engine: stubEngine{err: errors.New("tesseract: exit status 1")}})
	res = r.Extract(context.Background(), constants.KindImage, "/scan.png")
	assert.Empty(t, res.Text)
	assert.Equal(t, constants.MethodImageOCRFailed, res.Method)
}

func TestImageExtractor_NoEngineConfigured(t *testing.T) {
	res := NewDefaultRegistry(Deps{}).Extract(context.Background(), constants.KindImage, "/scan.png")
	assert.Empty(t, res.Text)
	assert.Equal(t, constants.MethodImageOCRFailed, res.Method)
}
