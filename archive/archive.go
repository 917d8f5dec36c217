// Package archive persists finished pipeline runs in a lode dataset.
//
// Each run is written as one snapshot holding a run record (outcome and
// violation tables) and a metrics record. Records are Hive-partitioned by
// case, day, run_id and record_kind so a run can be located from the
// manifest without reading unrelated data.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/gridops-tools/ctgrun/metrics"
	"github.com/gridops-tools/ctgrun/pipeline"
	"github.com/gridops-tools/ctgrun/types"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "ctgrun"

// Record kinds, also used as the record_kind partition value.
const (
	RecordKindRun     = "run"
	RecordKindMetrics = "metrics"
)

var partitionKeys = []string{"case", "day", "run_id", "record_kind"}

// Config selects and configures a backend.
type Config struct {
	Dataset string
	// Backend is one of fs, memory or s3.
	Backend string
	// Path is the fs root directory, or "bucket/prefix" for s3.
	Path         string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Archive writes and queries archived runs.
type Archive struct {
	dataset lode.Dataset
	backend string
}

// New creates an archive over a lode store factory.
func New(dataset, backend string, factory lode.StoreFactory) (*Archive, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, wrap("init", dataset, err)
	}
	return &Archive{dataset: ds, backend: backend}, nil
}

// NewFS opens an archive rooted at a local directory.
func NewFS(dataset, root string) (*Archive, error) {
	return New(dataset, BackendFS, lode.NewFSFactory(root))
}

// NewMemory creates an in-process archive. Contents are lost on exit.
func NewMemory(dataset string) (*Archive, error) {
	return New(dataset, BackendMemory, lode.NewMemoryFactory())
}

// Open creates the archive described by cfg.
func Open(ctx context.Context, cfg Config) (*Archive, error) {
	switch cfg.Backend {
	case BackendFS, "":
		if cfg.Path == "" {
			return nil, errors.New("archive path is required for the fs backend")
		}
		return NewFS(cfg.Dataset, cfg.Path)
	case BackendMemory:
		return NewMemory(cfg.Dataset)
	case BackendS3:
		bucket, prefix := ParseS3Path(cfg.Path)
		return NewS3(ctx, cfg.Dataset, S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend %q (want fs, memory or s3)", cfg.Backend)
	}
}

// Backend returns the backend name.
func (a *Archive) Backend() string {
	return a.backend
}

// RunRecord is the archived outcome of one run.
type RunRecord struct {
	RunID         string                 `json:"run_id" yaml:"run_id"`
	CaseName      string                 `json:"case_name" yaml:"case_name"`
	Status        string                 `json:"status" yaml:"status"`
	Code          string                 `json:"code,omitempty" yaml:"code,omitempty"`
	FailedStage   string                 `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error         string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Contingencies int                    `json:"contingencies" yaml:"contingencies"`
	Dir           string                 `json:"dir,omitempty" yaml:"dir,omitempty"`
	StartedAt     time.Time              `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time              `json:"completed_at" yaml:"completed_at"`
	DurationMS    int64                  `json:"duration_ms" yaml:"duration_ms"`
	Report        *types.ViolationReport `json:"report,omitempty" yaml:"report,omitempty"`
}

// RecordFromResult builds the archive record of a finished run.
func RecordFromResult(res *pipeline.Result, completedAt time.Time) *RunRecord {
	rec := &RunRecord{
		Status:        string(res.Status),
		Code:          res.Code,
		FailedStage:   string(res.FailedStage),
		Contingencies: res.Contingencies,
		Dir:           res.Dir,
		CompletedAt:   completedAt.UTC(),
		DurationMS:    res.Duration.Milliseconds(),
		Report:        res.Report,
	}
	if res.RunMeta != nil {
		rec.RunID = res.RunMeta.RunID
		rec.CaseName = res.RunMeta.CaseName
		rec.StartedAt = res.RunMeta.StartedAt.UTC()
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// WriteRun stores a run record and, if snap is non-nil, its metrics in a
// single snapshot.
func (a *Archive) WriteRun(ctx context.Context, rec *RunRecord, snap *metrics.Snapshot) error {
	if rec == nil || rec.RunID == "" {
		return errors.New("run record with a run ID is required")
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	path := recordPath(rec)

	runMap, err := toMap(rec)
	if err != nil {
		return wrap("write", path, err)
	}
	partition(runMap, rec, RecordKindRun)
	records := []any{runMap}

	if snap != nil {
		metricsMap, err := toMap(snap)
		if err != nil {
			return wrap("write", path, err)
		}
		m := map[string]any{"metrics": metricsMap}
		partition(m, rec, RecordKindMetrics)
		records = append(records, m)
	}

	if _, err := a.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return wrap("write", path, err)
	}
	return nil
}

func partition(m map[string]any, rec *RunRecord, kind string) {
	m["case"] = caseKey(rec.CaseName)
	m["day"] = rec.CompletedAt.UTC().Format("2006-01-02")
	m["run_id"] = rec.RunID
	m["record_kind"] = kind
}

func recordPath(rec *RunRecord) string {
	return fmt.Sprintf("case=%s/run_id=%s", caseKey(rec.CaseName), rec.RunID)
}

var unsafePartition = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// caseKey makes a case name safe as a partition value.
func caseKey(name string) string {
	key := unsafePartition.ReplaceAllString(name, "_")
	if key == "" {
		return "_"
	}
	return key
}

// toMap converts a struct to the map form lode's Hive layout requires.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// fromMap decodes a stored record into out.
func fromMap(m map[string]any, out any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
