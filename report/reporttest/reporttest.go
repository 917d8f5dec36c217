// Package reporttest builds violation spreadsheets for tests.
package reporttest

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/gridops-tools/ctgrun/types"
)

// Sheet is one worksheet: the first row is written as given, header included.
type Sheet struct {
	Name string
	Rows [][]string
}

// FromTable converts a table into a sheet with its columns as header.
func FromTable(t types.Table) Sheet {
	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.Columns)
	rows = append(rows, t.Rows...)
	return Sheet{Name: t.Name, Rows: rows}
}

// EmptyReport returns the three report tables with headers and no rows.
func EmptyReport() []Sheet {
	return []Sheet{
		{Name: types.SheetVoltageViolations, Rows: [][]string{{"Contingency", "Bus", "Name", "BaseKV", "Vpu", "Limit", "Type"}}},
		{Name: types.SheetPerUnitFlowViolations, Rows: [][]string{{"Contingency", "From Bus", "To Bus", "Ckt", "Rating", "Flow", "Percent"}}},
		{Name: types.SheetUnsolvedContingencies, Rows: [][]string{{"Contingency", "Description"}}},
	}
}

// WriteWorkbook writes sheets to a new workbook at path.
func WriteWorkbook(path string, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return err
		}
		for r, row := range s.Rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if err := f.SetCellStr(s.Name, cell, v); err != nil {
					return fmt.Errorf("set %s!%s: %w", s.Name, cell, err)
				}
			}
		}
	}
	return f.SaveAs(path)
}
