package types

// Sheet names produced by the reporting tool.
const (
	SheetVoltageViolations     = "VoltageViolations"
	SheetPerUnitFlowViolations = "PerUnitFlowViolations"
	SheetUnsolvedContingencies = "UnsolvedContingencies"
)

// Table is one named table read from the violation spreadsheet.
// Rows are kept in spreadsheet order and are not interpreted.
type Table struct {
	Name    string     `json:"name" yaml:"name"`
	Columns []string   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Records returns the rows keyed by column name.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// ViolationReport is the final result of a contingency pipeline run.
type ViolationReport struct {
	VoltageViolations     Table `json:"voltage_violations" yaml:"voltage_violations"`
	PerUnitFlowViolations Table `json:"per_unit_flow_violations" yaml:"per_unit_flow_violations"`
	UnsolvedContingencies Table `json:"unsolved_contingencies" yaml:"unsolved_contingencies"`
}

// Tables returns the three tables in fixed order.
func (r *ViolationReport) Tables() []Table {
	return []Table{r.VoltageViolations, r.PerUnitFlowViolations, r.UnsolvedContingencies}
}
