package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/pipeline"
)

// MaxBusName is the longest bus name the engine stores.
const MaxBusName = 12

// Defaults applied when optional arguments are omitted.
const (
	DefaultCircuit = "1"
	DefaultRating  = 9999.0
	DefaultUnitID  = "1"
	DefaultQLimit  = 9999.0
	DefaultPmax    = 9999.0
)

func (r *Registry) operations() []Operation {
	return []Operation{
		{
			Name:        "open_case",
			Description: "Load a case file into the engine, replacing the live case.",
			Params: []Param{
				{Name: "case", Type: "string", Required: true, Description: "case file path"},
			},
			call: r.openCase,
		},
		{
			Name:        "save_case",
			Description: "Write the live case to a file.",
			Params: []Param{
				{Name: "case", Type: "string", Required: true, Description: "case file path"},
			},
			call: r.saveCase,
		},
		{
			Name:        "solve_case",
			Description: "Run an AC power flow on the live case.",
			call:        r.solveCase,
		},
		{
			Name:        "add_bus",
			Description: "Add or update a bus.",
			Params: []Param{
				{Name: "busnum", Type: "int", Required: true, Description: "bus number, positive"},
				{Name: "busname", Type: "string", Required: true, Description: "bus name, at most 12 characters"},
				{Name: "nominalkv", Type: "float", Required: true, Description: "base voltage in kV"},
				{Name: "type", Type: "int", Default: engine.BusLoad, Description: "0 swing, 1 load, 2 generator"},
			},
			call: r.addBus,
		},
		{
			Name:        "add_transmission_line",
			Description: "Add or update a branch between two existing buses.",
			Params: []Param{
				{Name: "frombus", Type: "int", Required: true, Description: "from bus number"},
				{Name: "tobus", Type: "int", Required: true, Description: "to bus number"},
				{Name: "circuit", Type: "string", Default: DefaultCircuit, Description: "circuit identifier"},
				{Name: "resistance", Type: "float", Default: 0.0, Description: "series resistance in pu"},
				{Name: "reactance", Type: "float", Required: true, Description: "series reactance in pu"},
				{Name: "susceptance", Type: "float", Default: 0.0, Description: "total charging susceptance in pu"},
				{Name: "rating", Type: "float", Default: DefaultRating, Description: "rating in MVA"},
			},
			call: r.addTransmissionLine,
		},
		{
			Name:        "add_generator",
			Description: "Add or update a generator at an existing bus.",
			Params: []Param{
				{Name: "bus", Type: "int", Required: true, Description: "bus number"},
				{Name: "id", Type: "string", Default: DefaultUnitID, Description: "unit identifier"},
				{Name: "pgen", Type: "float", Required: true, Description: "real output in MW"},
				{Name: "qgen", Type: "float", Default: 0.0, Description: "reactive output in MVAr"},
				{Name: "pmax", Type: "float", Default: DefaultPmax, Description: "real power limit in MW"},
				{Name: "qmax", Type: "float", Default: DefaultQLimit, Description: "upper reactive limit in MVAr"},
				{Name: "qmin", Type: "float", Default: -DefaultQLimit, Description: "lower reactive limit in MVAr"},
			},
			call: r.addGenerator,
		},
		{
			Name:        "add_load",
			Description: "Add or update a load at an existing bus.",
			Params: []Param{
				{Name: "bus", Type: "int", Required: true, Description: "bus number"},
				{Name: "id", Type: "string", Default: DefaultUnitID, Description: "load identifier"},
				{Name: "p", Type: "float", Required: true, Description: "real demand in MW"},
				{Name: "q", Type: "float", Default: 0.0, Description: "reactive demand in MVAr"},
			},
			call: r.addLoad,
		},
		{
			Name:        "add_shunt",
			Description: "Add or update a shunt at an existing bus.",
			Params: []Param{
				{Name: "bus", Type: "int", Required: true, Description: "bus number"},
				{Name: "id", Type: "string", Default: DefaultUnitID, Description: "shunt identifier"},
				{Name: "mvar", Type: "float", Required: true, Description: "nominal MVAr at 1.0 pu, positive is capacitive"},
			},
			call: r.addShunt,
		},
		{
			Name:        "get_voltage",
			Description: "Read the voltage of a bus.",
			Params: []Param{
				{Name: "bus", Type: "int", Required: true, Description: "bus number"},
			},
			call: r.getVoltage,
		},
		{
			Name:        "get_branch_loading",
			Description: "Read the flow and loading of a branch.",
			Params: []Param{
				{Name: "frombus", Type: "int", Required: true, Description: "from bus number"},
				{Name: "tobus", Type: "int", Required: true, Description: "to bus number"},
				{Name: "circuit", Type: "string", Default: DefaultCircuit, Description: "circuit identifier"},
			},
			call: r.getBranchLoading,
		},
		{
			Name:        "run_contingency_analysis",
			Description: "Run the N-1 contingency pipeline on the live case and return its violation report.",
			Errors:      stageStatuses(),
			call:        r.runContingencyAnalysis,
		},
	}
}

func (r *Registry) openCase(_ context.Context, p Params) Result {
	path, err := p.String("case", true, "")
	if err != nil {
		return inputError(err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Status: StatusUnknown, Message: err.Error()}
	}
	if code := r.engine.LoadCase(abs); code != engine.CodeOK {
		return Result{Status: StatusUnknown, Message: fmt.Sprintf("load of %s returned code %d", abs, code)}
	}
	info := r.counts()
	info["path"] = abs
	return Result{Status: StatusSuccess, CaseInfo: info}
}

func (r *Registry) saveCase(_ context.Context, p Params) Result {
	path, err := p.String("case", true, "")
	if err != nil {
		return inputError(err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Status: StatusUnknown, Message: err.Error()}
	}
	if code := r.engine.SaveCase(abs); code != engine.CodeOK {
		return Result{Status: StatusUnknown, Message: fmt.Sprintf("save to %s returned code %d", abs, code)}
	}
	info := r.counts()
	info["path"] = abs
	return Result{Status: StatusSuccess, CaseInfo: info}
}

// SolveStatus maps a solve return code to its status.
func SolveStatus(code int) string {
	switch {
	case code == engine.CodeOK:
		return StatusSuccess
	case code == engine.SolveDiverged:
		return "error case diverged"
	case code == engine.SolveMaxIterations:
		return "error exceeded maximum iterations"
	case code < engine.SolveMaxIterations:
		return "error no swing bus or HVDC error"
	default:
		return StatusUnknown
	}
}

func (r *Registry) solveCase(context.Context, Params) Result {
	code := r.engine.Solve()
	res := Result{Status: SolveStatus(code), CaseInfo: map[string]any{"result_code": code}}
	if code != engine.CodeOK {
		res.Message = fmt.Sprintf("solve returned code %d", code)
	}
	return res
}

// BusStatus maps a bus record return code to its status.
func BusStatus(code int) string {
	switch code {
	case engine.CodeOK:
		return StatusSuccess
	case engine.AddInsufficientInput:
		return StatusInsufficientInput
	case engine.AddBusNameVoltage:
		return "error bus number not found when using combination of bus name and voltage"
	case engine.AddBusNumberNotPositive:
		return "error bus number must be positive"
	case engine.AddBusVoltageNotPositive:
		return "error bus voltage must be positive"
	default:
		return "error bus type is out of range"
	}
}

// BranchStatus maps a branch or bus-attached record return code to its
// status.
func BranchStatus(code int) string {
	switch code {
	case engine.CodeOK:
		return StatusSuccess
	case engine.AddInsufficientInput:
		return StatusInsufficientInput
	case engine.AddBranchBusOutOfRange:
		return "error branch bus out of range"
	case engine.AddBusDoesNotExist:
		return "error branch bus does not exist"
	case engine.AddBranchSameBus:
		return "error branch from and to bus are identical"
	default:
		return StatusUnknown
	}
}

// ElementStatus maps a generator, load or shunt record return code to its
// status.
func ElementStatus(code int) string {
	switch code {
	case engine.CodeOK:
		return StatusSuccess
	case engine.AddInsufficientInput:
		return StatusInsufficientInput
	case engine.AddBranchBusOutOfRange:
		return "error bus out of range"
	case engine.AddBusDoesNotExist:
		return "error bus does not exist"
	default:
		return StatusUnknown
	}
}

// edited reports an add operation with the case's element counts, which
// are unchanged when the engine rejected the record.
func (r *Registry) edited(status string, code int) Result {
	res := Result{Status: status, CaseInfo: r.counts()}
	if status != StatusSuccess {
		res.Message = fmt.Sprintf("engine returned code %d", code)
	}
	return res
}

func (r *Registry) addBus(_ context.Context, p Params) Result {
	num, err := p.Int("busnum", true, 0)
	if err != nil {
		return inputError(err)
	}
	name, err := p.String("busname", true, "")
	if err != nil {
		return inputError(err)
	}
	kv, err := p.Float("nominalkv", true, 0)
	if err != nil {
		return inputError(err)
	}
	typ, err := p.Int("type", false, engine.BusLoad)
	if err != nil {
		return inputError(err)
	}

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return Result{Status: StatusInsufficientInput, Message: "bus name is empty"}
	case len(name) > MaxBusName:
		return Result{Status: StatusInsufficientInput, Message: fmt.Sprintf("bus name %q exceeds %d characters", name, MaxBusName)}
	case strings.ContainsAny(name, "\r\n"):
		return Result{Status: StatusInsufficientInput, Message: "bus name contains a line break"}
	case num <= 0:
		return r.edited(BusStatus(engine.AddBusNumberNotPositive), engine.AddBusNumberNotPositive)
	case kv <= 0:
		return r.edited(BusStatus(engine.AddBusVoltageNotPositive), engine.AddBusVoltageNotPositive)
	case typ < engine.BusSwing || typ > engine.BusGenerator:
		return r.edited(BusStatus(engine.AddBusTypeOutOfRange), engine.AddBusTypeOutOfRange)
	}

	code := r.engine.AddRecord(engine.RecordBus,
		strconv.Itoa(num),
		"type basekv busnam",
		fmt.Sprintf("%d %s %s", typ, formatFloat(kv), name))
	return r.edited(BusStatus(code), code)
}

func (r *Registry) addTransmissionLine(_ context.Context, p Params) Result {
	from, err := p.Int("frombus", true, 0)
	if err != nil {
		return inputError(err)
	}
	to, err := p.Int("tobus", true, 0)
	if err != nil {
		return inputError(err)
	}
	ckt, err := circuitParam(p)
	if err != nil {
		return inputError(err)
	}
	res, err := p.Float("resistance", false, 0)
	if err != nil {
		return inputError(err)
	}
	x, err := p.Float("reactance", true, 0)
	if err != nil {
		return inputError(err)
	}
	b, err := p.Float("susceptance", false, 0)
	if err != nil {
		return inputError(err)
	}
	rating, err := p.Float("rating", false, DefaultRating)
	if err != nil {
		return inputError(err)
	}

	code := r.engine.AddRecord(engine.RecordBranch,
		fmt.Sprintf("%d %d %s 1", from, to, ckt),
		"st zsecr zsecx bsec rate[0]",
		fmt.Sprintf("1 %s %s %s %s", formatFloat(res), formatFloat(x), formatFloat(b), formatFloat(rating)))
	return r.edited(BranchStatus(code), code)
}

func (r *Registry) addGenerator(_ context.Context, p Params) Result {
	bus, id, err := elementKey(p)
	if err != nil {
		return inputError(err)
	}
	vals := make([]string, 0, 5)
	for _, f := range []struct {
		name     string
		required bool
		def      float64
	}{
		{"pgen", true, 0},
		{"qgen", false, 0},
		{"pmax", false, DefaultPmax},
		{"qmax", false, DefaultQLimit},
		{"qmin", false, -DefaultQLimit},
	} {
		v, err := p.Float(f.name, f.required, f.def)
		if err != nil {
			return inputError(err)
		}
		vals = append(vals, formatFloat(v))
	}

	code := r.engine.AddRecord(engine.RecordGenerator,
		fmt.Sprintf("%d %s", bus, id),
		"st pgen qgen pmax qmax qmin",
		"1 "+strings.Join(vals, " "))
	return r.edited(ElementStatus(code), code)
}

func (r *Registry) addLoad(_ context.Context, p Params) Result {
	bus, id, err := elementKey(p)
	if err != nil {
		return inputError(err)
	}
	pl, err := p.Float("p", true, 0)
	if err != nil {
		return inputError(err)
	}
	ql, err := p.Float("q", false, 0)
	if err != nil {
		return inputError(err)
	}
	code := r.engine.AddRecord(engine.RecordLoad,
		fmt.Sprintf("%d %s", bus, id),
		"st p q",
		fmt.Sprintf("1 %s %s", formatFloat(pl), formatFloat(ql)))
	return r.edited(ElementStatus(code), code)
}

// addShunt converts MVAr at nominal voltage into per-unit susceptance.
func (r *Registry) addShunt(_ context.Context, p Params) Result {
	bus, id, err := elementKey(p)
	if err != nil {
		return inputError(err)
	}
	mvar, err := p.Float("mvar", true, 0)
	if err != nil {
		return inputError(err)
	}
	code := r.engine.AddRecord(engine.RecordShunt,
		fmt.Sprintf("%d %s", bus, id),
		"st b",
		"1 "+formatFloat(mvar/engine.BaseMVA))
	return r.edited(ElementStatus(code), code)
}

func (r *Registry) getVoltage(_ context.Context, p Params) Result {
	num, err := p.Int("bus", true, 0)
	if err != nil {
		return inputError(err)
	}
	idx := r.engine.BusIndex(num)
	if idx < 0 {
		return Result{Status: "error bus not found", Message: fmt.Sprintf("bus %d not in case", num)}
	}
	b, ok := r.engine.Bus(idx)
	if !ok {
		return Result{Status: "error bus not found", Message: fmt.Sprintf("bus index %d out of range", idx)}
	}
	return Result{Status: StatusSuccess, CaseInfo: map[string]any{
		"bus_id":                strconv.Itoa(b.Number),
		"bus_name":              b.Name,
		"base_kv":               formatFloat(b.BaseKV),
		"voltage_perunit_kv":    formatFloat(b.Vm),
		"voltage_kv":            formatFloat(b.Vm * b.BaseKV),
		"voltage_angle_degrees": formatFloat(b.Va),
	}}
}

func (r *Registry) getBranchLoading(_ context.Context, p Params) Result {
	from, err := p.Int("frombus", true, 0)
	if err != nil {
		return inputError(err)
	}
	to, err := p.Int("tobus", true, 0)
	if err != nil {
		return inputError(err)
	}
	ckt, err := circuitParam(p)
	if err != nil {
		return inputError(err)
	}
	flow, code := r.engine.BranchLoading(from, to, ckt)
	if code != engine.CodeOK {
		return Result{Status: "error branch not found",
			Message: fmt.Sprintf("branch %d-%d ckt %s returned code %d", from, to, ckt, code)}
	}
	return Result{Status: StatusSuccess, CaseInfo: map[string]any{
		"from_bus":        strconv.Itoa(flow.From),
		"to_bus":          strconv.Itoa(flow.To),
		"circuit":         flow.Circuit,
		"rating_mva":      formatFloat(flow.Rating),
		"flow_mva":        formatFloat(flow.FlowMVA),
		"loading_percent": formatFloat(flow.Loading * 100),
	}}
}

// runContingencyAnalysis reports a failed run as "error <code>" with the
// failing stage in case_info.
func (r *Registry) runContingencyAnalysis(ctx context.Context, _ Params) Result {
	if r.analyzer == nil {
		return Result{Status: StatusUnknown, Message: "contingency analysis is not configured"}
	}
	res, err := r.analyzer(ctx)
	if err != nil {
		code := pipeline.Code(err)
		info := map[string]any{"code": code}
		if res != nil {
			info["stage"] = string(res.FailedStage)
			if res.Dir != "" {
				info["dir"] = res.Dir
			}
		}
		return Result{Status: stageStatus(code), CaseInfo: info, Message: err.Error()}
	}
	if res == nil || res.Report == nil {
		return Result{Status: StatusUnknown, Message: "contingency analysis produced no report"}
	}
	rpt := res.Report
	info := map[string]any{
		"run_id":                   res.RunMeta.RunID,
		"contingencies":            res.Contingencies,
		"voltage_violations":       rpt.VoltageViolations.Records(),
		"per_unit_flow_violations": rpt.PerUnitFlowViolations.Records(),
		"unsolved_contingencies":   rpt.UnsolvedContingencies.Records(),
	}
	// A purged run directory is not reported.
	if res.Dir != "" {
		info["dir"] = res.Dir
	}
	return Result{Status: StatusSuccess, CaseInfo: info}
}

func stageStatus(code string) string {
	return "error " + strings.ToLower(code)
}

// stageStatuses lists the statuses of a failed pipeline run in stage order.
func stageStatuses() []string {
	kinds := pipeline.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = stageStatus(pipeline.CodeOf(k))
	}
	return out
}

func circuitParam(p Params) (string, error) {
	ckt, err := p.String("circuit", false, DefaultCircuit)
	if err != nil {
		return "", err
	}
	ckt = strings.TrimSpace(ckt)
	if ckt == "" || strings.ContainsAny(ckt, " \t\r\n") {
		return "", &ParamError{Name: "circuit", Reason: "must be a single token"}
	}
	return ckt, nil
}

func elementKey(p Params) (int, string, error) {
	bus, err := p.Int("bus", true, 0)
	if err != nil {
		return 0, "", err
	}
	id, err := p.String("id", false, DefaultUnitID)
	if err != nil {
		return 0, "", err
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, " \t\r\n") {
		return 0, "", &ParamError{Name: "id", Reason: "must be a single token"}
	}
	return bus, id, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
