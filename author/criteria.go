package author

import (
	"bytes"
	"fmt"
)

// Criteria is the monitoring/criteria control file for the batch solver.
// The pipeline always uses DefaultCriteria; the fields exist so the
// rendering is explicit about what each positional value means.
type Criteria struct {
	// OverVoltage and UnderVoltage are the monitored band in per-unit.
	OverVoltage  float64
	UnderVoltage float64
	// FlowLimit is the branch loading threshold in percent of rating.
	FlowLimit float64
	// FlowWarning is the margin below FlowLimit reported as a warning.
	FlowWarning float64
	// InterfaceLimit is the interface loading threshold in percent.
	InterfaceLimit float64
	// Control enables: tap changers, static var devices, phase shifters, DC taps.
	LTC   bool
	SVD   bool
	PAR   bool
	DCTap bool
}

// DefaultCriteria returns the fixed criteria used by every pipeline run:
// 1.05/0.95 pu band, 100% flow and interface limits with no warning margin,
// all controls disabled during the solve.
func DefaultCriteria() Criteria {
	return Criteria{
		OverVoltage:    1.05,
		UnderVoltage:   0.95,
		FlowLimit:      100.0,
		FlowWarning:    0.0,
		InterfaceLimit: 100.0,
	}
}

// Bytes renders the criteria file. One directive per line.
func (c Criteria) Bytes() ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "rating 1 %.1f %.1f\n", c.FlowLimit, c.FlowWarning)
	fmt.Fprintf(&b, "monitor voltage 1 %.3f %.3f\n", c.OverVoltage, c.UnderVoltage)
	fmt.Fprintf(&b, "monitor flows 1 %.1f %.1f\n", c.FlowLimit, c.FlowWarning)
	fmt.Fprintf(&b, "monitor interface 1 %.1f %.1f\n", c.InterfaceLimit, c.FlowWarning)
	b.WriteString("monitor svd 0\n")
	b.WriteString("monitor load 0\n")
	b.WriteString("monitor gens 0\n")
	b.WriteString("monitor 1 0.0 9999.0\n")
	fmt.Fprintf(&b, "LTC %d\n", flag(c.LTC))
	fmt.Fprintf(&b, "SVD %d\n", flag(c.SVD))
	fmt.Fprintf(&b, "PAR %d\n", flag(c.PAR))
	fmt.Fprintf(&b, "dctap %d\n", flag(c.DCTap))
	b.WriteString("area 0 9999\n")
	return b.Bytes(), nil
}

func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}
