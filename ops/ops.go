// Package ops exposes the engine and the contingency pipeline as named
// operations for an automation client.
//
// Each operation validates its arguments, converts units, forwards the call
// to the engine in its positional record format, and translates the integer
// return code into a status string. Statuses are "success" or a string
// starting with "error".
package ops

import (
	"context"
	"fmt"
	"sort"

	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/log"
	"github.com/gridops-tools/ctgrun/pipeline"
)

// Status values shared by several operations.
const (
	StatusSuccess           = "success"
	StatusUnknown           = "error unknown"
	StatusInsufficientInput = "error insufficient input"
	StatusUnknownOperation  = "error unknown operation"
)

// Result is the reply to one operation call.
type Result struct {
	Status   string         `json:"status" yaml:"status"`
	CaseInfo map[string]any `json:"case_info,omitempty" yaml:"case_info,omitempty"`
	Message  string         `json:"message,omitempty" yaml:"message,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Param describes one operation argument.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required" yaml:"required"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description" yaml:"description"`
}

// Operation is one named call.
type Operation struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Params      []Param `json:"params" yaml:"params"`
	// Errors lists failure statuses beyond the generic ones, when the
	// operation has its own.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	call func(ctx context.Context, p Params) Result
}

// Analyzer runs the contingency pipeline against the registry's engine.
type Analyzer func(ctx context.Context) (*pipeline.Result, error)

// Registry dispatches operation calls to an engine.
type Registry struct {
	engine   engine.Engine
	analyzer Analyzer
	logger   *log.Logger
	ops      map[string]Operation
}

// Option configures a Registry.
type Option func(*Registry)

// WithAnalyzer enables run_contingency_analysis.
func WithAnalyzer(a Analyzer) Option {
	return func(r *Registry) { r.analyzer = a }
}

// WithLogger sets the logger used for call tracing.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates a registry over eng with every operation registered.
func New(eng engine.Engine, opts ...Option) *Registry {
	r := &Registry{engine: eng, ops: make(map[string]Operation)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewNop()
	}
	for _, op := range r.operations() {
		r.ops[op.Name] = op
	}
	return r
}

// List returns the operations sorted by name.
func (r *Registry) List() []Operation {
	out := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named operation.
func (r *Registry) Lookup(name string) (Operation, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Call invokes the named operation. Panics inside the engine are reported
// as "error unknown" with the panic value as message.
func (r *Registry) Call(ctx context.Context, name string, p Params) (res Result) {
	op, ok := r.ops[name]
	if !ok {
		return Result{Status: StatusUnknownOperation, Message: fmt.Sprintf("no operation named %q", name)}
	}
	if p == nil {
		p = Params{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Status: StatusUnknown, Message: fmt.Sprint(rec)}
		}
		r.logger.Debug("operation called", map[string]any{
			"op":     name,
			"status": res.Status,
		})
	}()

	return op.call(ctx, p)
}

// counts is the case_info attached to edits.
func (r *Registry) counts() map[string]any {
	c := r.engine.Counts()
	return map[string]any{
		"num_buses":      c.Buses,
		"num_branches":   c.Branches,
		"num_generators": c.Generators,
	}
}

func inputError(err error) Result {
	return Result{Status: StatusInsufficientInput, Message: err.Error()}
}
