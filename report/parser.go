package report

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gridops-tools/ctgrun/types"
)

// Parser reads violation spreadsheets against a schema.
type Parser struct {
	schema Schema
}

// NewParser creates a parser for the default schema.
func NewParser() *Parser {
	return &Parser{schema: DefaultSchema()}
}

// Parse reads the spreadsheet at path into a violation report.
func (p *Parser) Parse(path string) (*types.ViolationReport, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	defer func() { _ = f.Close() }()

	sheetNames := make(map[string]string)
	for _, name := range f.GetSheetList() {
		sheetNames[normalize(name)] = name
	}

	tables := make([]types.Table, 0, 3)
	for _, s := range p.schema.Sheets() {
		actual, ok := s.find(sheetNames)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSheet, s.Name)
		}
		rows, err := f.GetRows(actual)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, s.Name, err)
		}
		t, err := buildTable(s, rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	return &types.ViolationReport{
		VoltageViolations:     tables[0],
		PerUnitFlowViolations: tables[1],
		UnsolvedContingencies: tables[2],
	}, nil
}

// buildTable takes the first row as the header and the rest as data.
func buildTable(s SheetSchema, rows [][]string) (types.Table, error) {
	rows = trimBlankTail(rows)
	if len(rows) == 0 {
		return types.Table{}, fmt.Errorf("%w: %s has no header row (want %s)",
			ErrMissingColumn, s.Name, strings.Join(s.Required, ", "))
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	if missing := s.missingColumns(header); len(missing) > 0 {
		return types.Table{}, fmt.Errorf("%w: %s lacks %s", ErrMissingColumn, s.Name, strings.Join(missing, ", "))
	}

	data := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		row := append([]string(nil), r...)
		for len(row) < len(header) {
			row = append(row, "")
		}
		data = append(data, row)
	}

	return types.Table{Name: s.Name, Columns: header, Rows: data}, nil
}

func trimBlankTail(rows [][]string) [][]string {
	for len(rows) > 0 && blank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
