package types

import "testing"

func TestState_Next(t *testing.T) {
	s := StateIdle
	visited := []State{s}
	for {
		next, ok := s.Next()
		if !ok {
			break
		}
		visited = append(visited, next)
		s = next
	}
	if s != StateDone {
		t.Fatalf("success path ended at %q, want %q", s, StateDone)
	}
	if len(visited) != len(StateOrder) {
		t.Errorf("visited %d states, want %d", len(visited), len(StateOrder))
	}
	if _, ok := StateFailed.Next(); ok {
		t.Error("failed state must have no successor")
	}
}

func TestState_Terminal(t *testing.T) {
	if !StateDone.Terminal() || !StateFailed.Terminal() {
		t.Error("done and failed must be terminal")
	}
	if StateSolving.Terminal() {
		t.Error("solving must not be terminal")
	}
}

func TestRunMeta_Validate(t *testing.T) {
	meta := NewRunMeta("case-a")
	if err := meta.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if meta.RunID == "" {
		t.Error("expected generated run ID")
	}

	if err := (&RunMeta{CaseName: "x"}).Validate(); err == nil {
		t.Error("expected error for empty run ID")
	}
	if err := (&RunMeta{RunID: "r"}).Validate(); err == nil {
		t.Error("expected error for empty case name")
	}
}

func TestTable_Records(t *testing.T) {
	tbl := Table{
		Name:    SheetVoltageViolations,
		Columns: []string{"Bus", "Vpu"},
		Rows:    [][]string{{"101", "1.08"}, {"102"}},
	}
	recs := tbl.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0]["Vpu"] != "1.08" {
		t.Errorf("recs[0][Vpu] = %q", recs[0]["Vpu"])
	}
	if v, ok := recs[1]["Vpu"]; !ok || v != "" {
		t.Errorf("short row should pad with empty string, got %q (present=%v)", v, ok)
	}
}
