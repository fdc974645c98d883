// Package export writes list pages and reports to Excel workbooks.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/hospital/staffportal/internal/portal/detail"
)

// Sheet is one worksheet: a header row followed by data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Entities builds a sheet from detail entities, one row per entity, using
// the labels of the first entity's field grid as the header.
func Entities[T detail.Entity](name string, items []T) Sheet {
	s := Sheet{Name: name}
	for i, it := range items {
		fields := it.Fields()
		if i == 0 {
			for _, f := range fields {
				s.Header = append(s.Header, f.Label)
			}
		}
		row := make([]any, len(fields))
		for j, f := range fields {
			row[j] = f.Value
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func build(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, errors.New("no sheets to export")
	}
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, s := range sheets {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}

		header := make([]any, len(s.Header))
		for j, h := range s.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			f.Close()
			return nil, err
		}
		if len(s.Header) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(s.Header), 1)
			if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
				f.Close()
				return nil, err
			}
		}
		for r, row := range s.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			row := row
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				f.Close()
				return nil, fmt.Errorf("sheet %s row %d: %w", name, r+2, err)
			}
		}
	}
	return f, nil
}

// Write encodes the workbook to w.
func Write(w io.Writer, sheets ...Sheet) error {
	f, err := build(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook to path, creating parent directories.
func Save(path string, sheets ...Sheet) error {
	if filepath.Ext(path) != ".xlsx" {
		return fmt.Errorf("export path %q must end in .xlsx", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := build(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}
