package author

import (
	"errors"
	"strings"
)

// RunDescriptor is the batch solver's run file: one CASE block naming the
// snapshot, contingency list, criteria file and results container.
type RunDescriptor struct {
	Label         string
	Snapshot      string
	Contingencies string
	Criteria      string
	Output        string
}

// Bytes renders the run descriptor.
func (d RunDescriptor) Bytes() ([]byte, error) {
	if d.Label == "" {
		return nil, errors.New("run descriptor label is required")
	}
	fields := []struct{ key, val string }{
		{"SAV", d.Snapshot},
		{"OTG", d.Contingencies},
		{"CNTL", d.Criteria},
		{"OUTPUT", d.Output},
	}

	label, err := quote("label", d.Label)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("CASE " + label + " 0 {\n")
	for i, f := range fields {
		if f.val == "" {
			return nil, errors.New("run descriptor " + f.key + " path is required")
		}
		q, err := quote(f.key, f.val)
		if err != nil {
			return nil, err
		}
		b.WriteString("  " + f.key + " " + q)
		if i < len(fields)-1 {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return []byte(b.String()), nil
}

// ReportDescriptor selects the contingency post-processing report and names
// the results container to read and the spreadsheet to write.
type ReportDescriptor struct {
	Input  string
	Output string
}

// Bytes renders the report descriptor.
func (d ReportDescriptor) Bytes() ([]byte, error) {
	if d.Input == "" || d.Output == "" {
		return nil, errors.New("report descriptor input and output paths are required")
	}
	in, err := quote("input", d.Input)
	if err != nil {
		return nil, err
	}
	out, err := quote("output", d.Output)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("runtype ctg\n")
	b.WriteString("report ctgviolations\n")
	b.WriteString("postproc 1\n")
	b.WriteString("ratingunits percent\n")
	b.WriteString(in + " " + out + "\n")
	b.WriteString("end\n")
	return []byte(b.String()), nil
}
