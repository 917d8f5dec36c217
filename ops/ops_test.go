package ops

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/engine/memengine"
	"github.com/gridops-tools/ctgrun/pipeline"
	"github.com/gridops-tools/ctgrun/types"
)

func newRegistry(t *testing.T, opts ...Option) (*Registry, *memengine.Engine) {
	t.Helper()
	eng := memengine.New()
	return New(eng, opts...), eng
}

func mustCall(t *testing.T, r *Registry, name string, p Params) Result {
	t.Helper()
	res := r.Call(context.Background(), name, p)
	if !res.OK() {
		t.Fatalf("%s(%v) = %+v, want success", name, p, res)
	}
	return res
}

// twoBus builds a swing bus and a load bus joined by one line.
func twoBus(t *testing.T, r *Registry) {
	t.Helper()
	mustCall(t, r, "add_bus", Params{"busnum": 1, "busname": "North", "nominalkv": 230.0, "type": 0})
	mustCall(t, r, "add_bus", Params{"busnum": 2, "busname": "South Load", "nominalkv": 230.0})
	mustCall(t, r, "add_transmission_line", Params{"frombus": 1, "tobus": 2, "reactance": 0.1})
}

func TestList(t *testing.T) {
	r, _ := newRegistry(t)
	var names []string
	for _, op := range r.List() {
		names = append(names, op.Name)
	}
	want := []string{
		"add_bus", "add_generator", "add_load", "add_shunt", "add_transmission_line",
		"get_branch_loading", "get_voltage", "open_case", "run_contingency_analysis",
		"save_case", "solve_case",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
	if _, ok := r.Lookup("add_bus"); !ok {
		t.Error("Lookup(add_bus) not found")
	}
}

func TestCall_UnknownOperation(t *testing.T) {
	r, _ := newRegistry(t)
	res := r.Call(context.Background(), "delete_case", nil)
	if res.Status != StatusUnknownOperation {
		t.Errorf("Status = %q, want %q", res.Status, StatusUnknownOperation)
	}
}

func TestAddBus_CaseInfo(t *testing.T) {
	r, _ := newRegistry(t)
	res := mustCall(t, r, "add_bus", Params{"busnum": 7, "busname": "Ridge", "nominalkv": 115.0, "type": 2})
	want := map[string]any{"num_buses": 1, "num_branches": 0, "num_generators": 0}
	if diff := cmp.Diff(want, res.CaseInfo); diff != "" {
		t.Errorf("case_info mismatch (-want +got):\n%s", diff)
	}

	v := mustCall(t, r, "get_voltage", Params{"bus": 7})
	if v.CaseInfo["bus_name"] != "Ridge" || v.CaseInfo["base_kv"] != "115" {
		t.Errorf("get_voltage = %+v", v.CaseInfo)
	}
}

func TestAddBus_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{"missing number", Params{"busname": "A", "nominalkv": 10.0}, StatusInsufficientInput},
		{"fractional number", Params{"busnum": 1.5, "busname": "A", "nominalkv": 10.0}, StatusInsufficientInput},
		{"name too long", Params{"busnum": 1, "busname": "ABCDEFGHIJKLM", "nominalkv": 10.0}, StatusInsufficientInput},
		{"empty name", Params{"busnum": 1, "busname": "  ", "nominalkv": 10.0}, StatusInsufficientInput},
		{"zero number", Params{"busnum": 0, "busname": "A", "nominalkv": 10.0}, "error bus number must be positive"},
		{"negative voltage", Params{"busnum": 1, "busname": "A", "nominalkv": -1.0}, "error bus voltage must be positive"},
		{"bad type", Params{"busnum": 1, "busname": "A", "nominalkv": 10.0, "type": 3}, "error bus type is out of range"},
		{"string numbers", Params{"busnum": "4", "busname": "A", "nominalkv": "13.8"}, StatusSuccess},
		{"json number", Params{"busnum": json.Number("5"), "busname": "A", "nominalkv": 13.8}, StatusSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRegistry(t)
			res := r.Call(context.Background(), "add_bus", tt.params)
			if res.Status != tt.want {
				t.Errorf("Status = %q (%s), want %q", res.Status, res.Message, tt.want)
			}
		})
	}
}

func TestAddTransmissionLine(t *testing.T) {
	r, eng := newRegistry(t)
	twoBus(t, r)

	c := eng.Snapshot()
	if len(c.Branches) != 1 {
		t.Fatalf("branches = %d, want 1", len(c.Branches))
	}
	br := c.Branches[0]
	if br.Circuit != "1" || br.Rating != DefaultRating || br.X != 0.1 || br.Status != 1 {
		t.Errorf("branch = %+v", br)
	}

	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{"missing reactance", Params{"frombus": 1, "tobus": 2}, StatusInsufficientInput},
		{"bus out of range", Params{"frombus": -1, "tobus": 2, "reactance": 0.1}, "error branch bus out of range"},
		{"bus does not exist", Params{"frombus": 1, "tobus": 9, "reactance": 0.1}, "error branch bus does not exist"},
		{"same bus", Params{"frombus": 2, "tobus": 2, "reactance": 0.1}, "error branch from and to bus are identical"},
		{"circuit with space", Params{"frombus": 1, "tobus": 2, "reactance": 0.1, "circuit": "a b"}, StatusInsufficientInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Call(context.Background(), "add_transmission_line", tt.params)
			if res.Status != tt.want {
				t.Errorf("Status = %q (%s), want %q", res.Status, res.Message, tt.want)
			}
		})
	}
}

func TestAddTransmissionLine_CountsOnRejection(t *testing.T) {
	r, _ := newRegistry(t)
	twoBus(t, r)

	res := r.Call(context.Background(), "add_transmission_line", Params{"frombus": 2, "tobus": 2, "reactance": 0.1})
	if res.Status != "error branch from and to bus are identical" {
		t.Fatalf("Status = %q", res.Status)
	}
	want := map[string]any{"num_buses": 2, "num_branches": 1, "num_generators": 0}
	if diff := cmp.Diff(want, res.CaseInfo); diff != "" {
		t.Errorf("case_info mismatch (-want +got):\n%s", diff)
	}

	res = r.Call(context.Background(), "add_bus", Params{"busnum": 0, "busname": "A", "nominalkv": 10.0})
	if res.OK() {
		t.Fatal("bus 0 should be rejected")
	}
	if diff := cmp.Diff(want, res.CaseInfo); diff != "" {
		t.Errorf("add_bus rejection case_info mismatch (-want +got):\n%s", diff)
	}
}

func TestAddAttachedElements(t *testing.T) {
	r, eng := newRegistry(t)
	twoBus(t, r)

	res := mustCall(t, r, "add_generator", Params{"bus": 1, "pgen": 80.0})
	if res.CaseInfo["num_generators"] != 1 {
		t.Errorf("num_generators = %v, want 1", res.CaseInfo["num_generators"])
	}
	mustCall(t, r, "add_load", Params{"bus": 2, "p": 75.0, "q": 10.0})
	mustCall(t, r, "add_shunt", Params{"bus": 2, "mvar": 25.0})

	c := eng.Snapshot()
	if got := c.Generators[0]; got.Pgen != 80 || got.Qmax != DefaultQLimit || got.Qmin != -DefaultQLimit || got.ID != "1" {
		t.Errorf("generator = %+v", got)
	}
	if got := c.Loads[0]; got.P != 75 || got.Q != 10 {
		t.Errorf("load = %+v", got)
	}
	if got := c.Shunts[0]; got.B != 0.25 {
		t.Errorf("shunt B = %v, want 0.25 pu", got.B)
	}

	for name, p := range map[string]Params{
		"add_generator": {"bus": 9, "pgen": 1.0},
		"add_load":      {"bus": 9, "p": 1.0},
		"add_shunt":     {"bus": 9, "mvar": 1.0},
	} {
		if res := r.Call(context.Background(), name, p); res.Status != "error bus does not exist" {
			t.Errorf("%s on missing bus: Status = %q", name, res.Status)
		}
	}
	if res := r.Call(context.Background(), "add_load", Params{"bus": 0, "p": 1.0}); res.Status != "error bus out of range" {
		t.Errorf("add_load on bus 0: Status = %q", res.Status)
	}
}

func TestSolveCase(t *testing.T) {
	r, _ := newRegistry(t)
	mustCall(t, r, "add_bus", Params{"busnum": 2, "busname": "Load", "nominalkv": 230.0})
	res := r.Call(context.Background(), "solve_case", nil)
	if res.Status != "error no swing bus or HVDC error" {
		t.Errorf("Status = %q, want no swing bus", res.Status)
	}
	if diff := cmp.Diff(map[string]any{"result_code": engine.SolveNoSwing}, res.CaseInfo); diff != "" {
		t.Errorf("failed solve case_info mismatch (-want +got):\n%s", diff)
	}

	mustCall(t, r, "add_bus", Params{"busnum": 1, "busname": "Swing", "nominalkv": 230.0, "type": 0})
	res = mustCall(t, r, "solve_case", nil)
	if diff := cmp.Diff(map[string]any{"result_code": engine.CodeOK}, res.CaseInfo); diff != "" {
		t.Errorf("solve case_info mismatch (-want +got):\n%s", diff)
	}
}

func TestSolveStatus(t *testing.T) {
	tests := map[int]string{
		0:  StatusSuccess,
		-1: "error case diverged",
		-2: "error exceeded maximum iterations",
		-3: "error no swing bus or HVDC error",
		-9: "error no swing bus or HVDC error",
		5:  StatusUnknown,
	}
	for code, want := range tests {
		if got := SolveStatus(code); got != want {
			t.Errorf("SolveStatus(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestGetVoltage(t *testing.T) {
	r, eng := newRegistry(t)
	twoBus(t, r)
	eng.SetVoltage(2, 0.9, -4.5)

	res := mustCall(t, r, "get_voltage", Params{"bus": 2})
	want := map[string]any{
		"bus_id":                "2",
		"bus_name":              "South Load",
		"base_kv":               "230",
		"voltage_perunit_kv":    "0.9",
		"voltage_kv":            "207",
		"voltage_angle_degrees": "-4.5",
	}
	if diff := cmp.Diff(want, res.CaseInfo); diff != "" {
		t.Errorf("case_info mismatch (-want +got):\n%s", diff)
	}

	if res := r.Call(context.Background(), "get_voltage", Params{"bus": 42}); res.Status != "error bus not found" {
		t.Errorf("missing bus: Status = %q", res.Status)
	}
}

func TestGetBranchLoading(t *testing.T) {
	r, eng := newRegistry(t)
	twoBus(t, r)
	mustCall(t, r, "add_transmission_line", Params{"frombus": 1, "tobus": 2, "circuit": "2", "reactance": 0.2, "rating": 200.0})
	if code := eng.AddRecord(engine.RecordBranch, "1 2 2", "flow", "150"); code != engine.CodeOK {
		t.Fatalf("set flow: code %d", code)
	}

	res := mustCall(t, r, "get_branch_loading", Params{"frombus": 2, "tobus": 1, "circuit": 2})
	if res.CaseInfo["loading_percent"] != "75" || res.CaseInfo["flow_mva"] != "150" {
		t.Errorf("case_info = %+v", res.CaseInfo)
	}

	res = r.Call(context.Background(), "get_branch_loading", Params{"frombus": 1, "tobus": 2, "circuit": "9"})
	if res.Status != "error branch not found" {
		t.Errorf("missing branch: Status = %q", res.Status)
	}
}

func TestSaveOpenCase(t *testing.T) {
	r, _ := newRegistry(t)
	twoBus(t, r)
	path := filepath.Join(t.TempDir(), "grid.sav")
	mustCall(t, r, "save_case", Params{"case": path})

	other, _ := newRegistry(t)
	res := mustCall(t, other, "open_case", Params{"case": path})
	want := map[string]any{"path": path, "num_buses": 2, "num_branches": 1, "num_generators": 0}
	if diff := cmp.Diff(want, res.CaseInfo); diff != "" {
		t.Errorf("case_info mismatch (-want +got):\n%s", diff)
	}

	res = other.Call(context.Background(), "open_case", Params{"case": filepath.Join(t.TempDir(), "missing.sav")})
	if res.Status != StatusUnknown || res.Message == "" {
		t.Errorf("missing case: %+v", res)
	}
	if res := other.Call(context.Background(), "open_case", nil); res.Status != StatusInsufficientInput {
		t.Errorf("no path: Status = %q", res.Status)
	}
}

type panicEngine struct{ engine.Engine }

func (panicEngine) Solve() int { panic("solver crashed") }

func TestCall_PanicIsUnknown(t *testing.T) {
	r := New(panicEngine{memengine.New()})
	res := r.Call(context.Background(), "solve_case", nil)
	if res.Status != StatusUnknown || res.Message != "solver crashed" {
		t.Errorf("got %+v, want error unknown with panic message", res)
	}
}

func TestRunContingencyAnalysis_ListsStageStatuses(t *testing.T) {
	r, _ := newRegistry(t)
	op, ok := r.Lookup("run_contingency_analysis")
	if !ok {
		t.Fatal("run_contingency_analysis not registered")
	}
	if len(op.Errors) != len(pipeline.Kinds()) {
		t.Errorf("errors = %v, want one per failure kind", op.Errors)
	}
	want := map[string]bool{"error snapshot_failed": false, "error solver_timeout": false, "error report_parse_failed": false}
	for _, s := range op.Errors {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for s, seen := range want {
		if !seen {
			t.Errorf("errors missing %q", s)
		}
	}
	if solve, _ := r.Lookup("solve_case"); len(solve.Errors) != 0 {
		t.Errorf("solve_case errors = %v, want none", solve.Errors)
	}
}

func TestRunContingencyAnalysis(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		r, _ := newRegistry(t)
		res := r.Call(context.Background(), "run_contingency_analysis", nil)
		if res.Status != StatusUnknown {
			t.Errorf("Status = %q", res.Status)
		}
	})

	t.Run("success", func(t *testing.T) {
		meta := &types.RunMeta{RunID: "run-1", CaseName: "grid"}
		r, _ := newRegistry(t, WithAnalyzer(func(context.Context) (*pipeline.Result, error) {
			return &pipeline.Result{
				RunMeta:       meta,
				Status:        types.OutcomeSuccess,
				Contingencies: 3,
				Dir:           "/tmp/run-1",
				Report: &types.ViolationReport{
					VoltageViolations: types.Table{
						Columns: []string{"Bus", "Voltage"},
						Rows:    [][]string{{"2", "1.08"}},
					},
				},
			}, nil
		}))
		res := mustCall(t, r, "run_contingency_analysis", nil)
		if res.CaseInfo["run_id"] != "run-1" || res.CaseInfo["contingencies"] != 3 || res.CaseInfo["dir"] != "/tmp/run-1" {
			t.Errorf("case_info = %+v", res.CaseInfo)
		}
		want := []map[string]string{{"Bus": "2", "Voltage": "1.08"}}
		if diff := cmp.Diff(want, res.CaseInfo["voltage_violations"]); diff != "" {
			t.Errorf("voltage_violations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stage failure", func(t *testing.T) {
		stageErr := pipeline.NewStageError(pipeline.ErrSolverTimeout, types.StateSolving, errors.New("deadline"))
		r, _ := newRegistry(t, WithAnalyzer(func(context.Context) (*pipeline.Result, error) {
			return &pipeline.Result{FailedStage: types.StateSolving, Dir: "/tmp/run-2"}, stageErr
		}))
		res := r.Call(context.Background(), "run_contingency_analysis", nil)
		if res.Status != "error solver_timeout" {
			t.Errorf("Status = %q, want error solver_timeout", res.Status)
		}
		if res.CaseInfo["stage"] != string(types.StateSolving) {
			t.Errorf("stage = %v", res.CaseInfo["stage"])
		}
	})

	t.Run("purged directory", func(t *testing.T) {
		r, _ := newRegistry(t, WithAnalyzer(func(context.Context) (*pipeline.Result, error) {
			return &pipeline.Result{
				RunMeta: &types.RunMeta{RunID: "run-3", CaseName: "grid"},
				Status:  types.OutcomeSuccess,
				Report:  &types.ViolationReport{},
			}, nil
		}))
		res := mustCall(t, r, "run_contingency_analysis", nil)
		if dir, ok := res.CaseInfo["dir"]; ok {
			t.Errorf("case_info.dir = %v, want omitted", dir)
		}
	})
}

func TestParams(t *testing.T) {
	p := Params{"a": "x", "n": 3.0, "s": " 2.5 ", "nan": "NaN", "b": true}
	if _, err := p.Int("a", true, 0); err == nil {
		t.Error("Int(a) = nil error, want not a number")
	}
	if v, _ := p.Int("missing", false, 9); v != 9 {
		t.Errorf("Int(missing) = %d, want default 9", v)
	}
	if v, err := p.Float("s", true, 0); err != nil || v != 2.5 {
		t.Errorf("Float(s) = %v, %v", v, err)
	}
	if _, err := p.Float("nan", true, 0); err == nil {
		t.Error("Float(nan) = nil error, want not finite")
	}
	if v, _ := p.String("n", true, ""); v != "3" {
		t.Errorf("String(n) = %q, want 3", v)
	}
	var pe *ParamError
	if _, err := p.String("b", true, ""); !errors.As(err, &pe) || pe.Name != "b" {
		t.Errorf("String(b) error = %v, want ParamError", err)
	}
}
