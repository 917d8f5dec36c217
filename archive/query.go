package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/gridops-tools/ctgrun/metrics"
)

var (
	// ErrNoRunsFound is returned when no run record matches a query.
	ErrNoRunsFound = errors.New("no archived runs found")
	// ErrNoMetricsFound is returned when no metrics record matches a query.
	ErrNoMetricsFound = errors.New("no archived metrics found")
)

// Filter narrows queries. Empty fields match everything.
type Filter struct {
	RunID    string
	CaseName string
}

// Latest returns the most recently archived run matching f.
func (a *Archive) Latest(ctx context.Context, f Filter) (*RunRecord, error) {
	var found *RunRecord
	err := a.scan(ctx, f, RecordKindRun, func(m map[string]any) (bool, error) {
		var rec RunRecord
		if err := fromMap(m, &rec); err != nil {
			return false, err
		}
		found = &rec
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNoRunsFound
	}
	return found, nil
}

// LatestMetrics returns the metrics of the most recent run matching f.
func (a *Archive) LatestMetrics(ctx context.Context, f Filter) (*metrics.Snapshot, error) {
	var found *metrics.Snapshot
	err := a.scan(ctx, f, RecordKindMetrics, func(m map[string]any) (bool, error) {
		raw, ok := m["metrics"].(map[string]any)
		if !ok {
			return false, nil
		}
		var snap metrics.Snapshot
		if err := fromMap(raw, &snap); err != nil {
			return false, err
		}
		found = &snap
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNoMetricsFound
	}
	return found, nil
}

// List returns archived runs matching f, newest first, without their
// violation tables. A limit of zero or less returns every run.
func (a *Archive) List(ctx context.Context, f Filter, limit int) ([]RunRecord, error) {
	var out []RunRecord
	err := a.scan(ctx, f, RecordKindRun, func(m map[string]any) (bool, error) {
		var rec RunRecord
		if err := fromMap(m, &rec); err != nil {
			return false, err
		}
		rec.Report = nil
		out = append(out, rec)
		return limit > 0 && len(out) >= limit, nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out, nil
}

// scan visits records of kind matching f, newest snapshot first, until
// visit returns true.
func (a *Archive) scan(ctx context.Context, f Filter, kind string, visit func(map[string]any) (bool, error)) error {
	snapshots, err := a.dataset.Snapshots(ctx)
	if err != nil {
		return wrap("list", string(a.dataset.ID()), err)
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, "record_kind", kind) ||
			!snapshotMatches(snap, "run_id", f.RunID) ||
			(f.CaseName != "" && !snapshotMatches(snap, "case", caseKey(f.CaseName))) {
			continue
		}

		data, err := a.dataset.Read(ctx, snap.ID)
		if err != nil {
			return wrap("read", fmt.Sprintf("%s/snapshot/%s", a.dataset.ID(), snap.ID), err)
		}
		// Manifest paths are a coarse filter; record fields are authoritative.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != kind {
				continue
			}
			if f.RunID != "" && m["run_id"] != f.RunID {
				continue
			}
			if f.CaseName != "" && m["case"] != caseKey(f.CaseName) {
				continue
			}
			done, err := visit(m)
			if err != nil {
				return wrap("read", fmt.Sprintf("%s/snapshot/%s", a.dataset.ID(), snap.ID), err)
			}
			if done {
				return nil
			}
		}
	}
	return nil
}

func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if hasPartition(f.Path, key, value) {
			return true
		}
	}
	return false
}

// hasPartition reports whether a Hive path contains the exact key=value
// segment, so run_id=run-1 does not match run_id=run-10.
func hasPartition(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
