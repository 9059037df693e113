// Package excel reads spreadsheet files into the loose table model.
//
// Only the first sheet is read. The first row supplies column names; every
// following row becomes a table row. Cells that parse as numbers come back
// as float64, everything else as string, empty cells as nil. Strict typing
// is the fact builders' job, not the parser's.
package excel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vk/factbuild/internal/table"
)

// ReadTable parses the spreadsheet at path into a Table.
func ReadTable(path string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return table.New(), nil
	}

	header := headerNames(rows[0])
	t := table.New(header...)

	for _, raw := range rows[1:] {
		row := make(table.Row, len(header))
		for i, col := range header {
			if i >= len(raw) {
				break
			}
			if v := inferCell(raw[i]); v != nil {
				row[col] = v
			}
		}
		t.AppendRow(row)
	}
	return t, nil
}

// headerNames normalizes the header row: trimmed names, positional names
// for blank header cells so no column is silently dropped.
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("COL_%d", i)
		}
		names[i] = h
	}
	return names
}

// inferCell maps a formatted cell to the dynamic value model.
func inferCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
