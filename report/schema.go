// Package report reads the violation spreadsheet written by the reporting tool.
//
// The spreadsheet contract is explicit: three named sheets, each with a
// header row that must contain the required columns. Header and sheet names
// match case-insensitively after trimming. Anything that does not satisfy
// the contract is a parse error, never an empty result.
package report

import (
	"errors"
	"strings"

	"github.com/gridops-tools/ctgrun/types"
)

var (
	// ErrMissingFile is returned when the spreadsheet does not exist.
	ErrMissingFile = errors.New("spreadsheet not found")
	// ErrUnreadable is returned when the spreadsheet cannot be opened as a workbook.
	ErrUnreadable = errors.New("spreadsheet unreadable")
	// ErrMissingSheet is returned when a required sheet is absent.
	ErrMissingSheet = errors.New("required sheet missing")
	// ErrMissingColumn is returned when a sheet lacks a required column.
	ErrMissingColumn = errors.New("required column missing")
)

// SheetSchema names a sheet and the columns its header must contain.
type SheetSchema struct {
	Name string
	// Aliases are other sheet names accepted for this sheet.
	Aliases  []string
	Required []string
}

// Schema is the full spreadsheet contract.
type Schema struct {
	Voltage  SheetSchema
	Flow     SheetSchema
	Unsolved SheetSchema
}

// DefaultSchema is the contract of the contingency violations report.
func DefaultSchema() Schema {
	return Schema{
		Voltage: SheetSchema{
			Name:     types.SheetVoltageViolations,
			Required: []string{"Contingency", "Bus", "Name", "BaseKV", "Vpu", "Limit", "Type"},
		},
		Flow: SheetSchema{
			Name:     types.SheetPerUnitFlowViolations,
			Required: []string{"Contingency", "From Bus", "To Bus", "Ckt", "Rating", "Flow", "Percent"},
		},
		Unsolved: SheetSchema{
			Name:     types.SheetUnsolvedContingencies,
			Aliases:  []string{"UnsolvedDescriptor"},
			Required: []string{"Contingency", "Description"},
		},
	}
}

// Sheets returns the sheet schemas in report order.
func (s Schema) Sheets() []SheetSchema {
	return []SheetSchema{s.Voltage, s.Flow, s.Unsolved}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// find returns the workbook sheet matching s by name, then by alias.
// sheets maps normalized names to actual names.
func (s SheetSchema) find(sheets map[string]string) (string, bool) {
	for _, name := range append([]string{s.Name}, s.Aliases...) {
		if actual, ok := sheets[normalize(name)]; ok {
			return actual, true
		}
	}
	return "", false
}

// missingColumns returns the required columns absent from header.
func (s SheetSchema) missingColumns(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[normalize(h)] = true
	}
	var missing []string
	for _, r := range s.Required {
		if !have[normalize(r)] {
			missing = append(missing, r)
		}
	}
	return missing
}
