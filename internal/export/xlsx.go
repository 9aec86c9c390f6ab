package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/entity"
)

const maxColWidth = 60

// TableXLSX writes a table record back out as a single-sheet workbook.
func TableXLSX(doc *entity.Document) ([]byte, error) {
	if !doc.IsTable || len(doc.TableRows) == 0 {
		return nil, common.InvalidInputf("document %d is not a table", doc.ID)
	}
	headers := doc.Headers
	if len(headers) == 0 {
		headers = sortedKeys(doc.TableRows)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Table"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]int, len(headers))
	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if n := len([]rune(v)); n > widths[col] {
			widths[col] = n
		}
		return f.SetCellValue(sheet, cell, v)
	}

	for i, h := range headers {
		if err := write(i, 1, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	for r, rec := range doc.TableRows {
		for i, h := range headers {
			if err := write(i, r+2, rec[h]); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, float64(min(w+2, maxColWidth)))
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedKeys(rows []map[string]string) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, r := range rows {
		for k := range r {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
