package memengine

import (
	"errors"
	"os"
	"sync"

	"github.com/gridops-tools/ctgrun/engine"
)

// Engine holds one live case. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex
	c  *Case
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine with an empty live case.
func New() *Engine {
	return &Engine{c: &Case{Format: caseFormat}}
}

// NewWithCase creates an engine whose live case is a copy of c.
func NewWithCase(c *Case) *Engine {
	cp := c.clone()
	cp.Format = caseFormat
	return &Engine{c: cp}
}

// Snapshot returns a copy of the live case.
func (e *Engine) Snapshot() *Case {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.clone()
}

// LoadCase implements engine.Engine.
func (e *Engine) LoadCase(path string) int {
	c, err := ReadCase(path)
	if err != nil {
		return fileCode(err)
	}
	e.mu.Lock()
	e.c = c
	e.mu.Unlock()
	return engine.CodeOK
}

// SaveCase implements engine.Engine.
func (e *Engine) SaveCase(path string) int {
	c := e.Snapshot()
	if err := WriteCase(path, c); err != nil {
		return fileCode(err)
	}
	return engine.CodeOK
}

// Solve implements engine.Engine. It succeeds when the case has a swing bus
// and leaves voltages untouched.
func (e *Engine) Solve() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.c.Buses {
		if b.Type == engine.BusSwing {
			return engine.CodeOK
		}
	}
	return engine.SolveNoSwing
}

// RunScript implements engine.Engine.
func (e *Engine) RunScript(path string) int {
	return runScript(path)
}

// Counts implements engine.Engine.
func (e *Engine) Counts() engine.Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return engine.Counts{
		Buses:      len(e.c.Buses),
		Branches:   len(e.c.Branches),
		Generators: len(e.c.Generators),
		Loads:      len(e.c.Loads),
		Shunts:     len(e.c.Shunts),
	}
}

// BusIndex implements engine.Engine.
func (e *Engine) BusIndex(number int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.busIndex(number)
}

// Bus implements engine.Engine.
func (e *Engine) Bus(index int) (engine.Bus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.c.Buses) {
		return engine.Bus{}, false
	}
	b := e.c.Buses[index]
	return engine.Bus{Number: b.Number, Name: b.Name, BaseKV: b.BaseKV, Type: b.Type, Vm: b.Vm, Va: b.Va}, true
}

// BranchLoading implements engine.Engine.
func (e *Engine) BranchLoading(from, to int, circuit string) (engine.BranchFlow, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.c.branchIndex(from, to, circuit)
	if i < 0 {
		return engine.BranchFlow{}, engine.CodeNotFound
	}
	br := e.c.Branches[i]
	f := engine.BranchFlow{From: br.From, To: br.To, Circuit: br.Circuit, Rating: br.Rating, FlowMVA: br.FlowMVA}
	if br.Rating > 0 {
		f.Loading = br.FlowMVA / br.Rating
	}
	return f, engine.CodeOK
}

// SetVoltage sets the voltage of bus number. It reports whether the bus exists.
func (e *Engine) SetVoltage(number int, vm, va float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.c.busIndex(number)
	if i < 0 {
		return false
	}
	e.c.Buses[i].Vm = vm
	e.c.Buses[i].Va = va
	return true
}

func fileCode(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return engine.CodeFileNotFound
	case errors.Is(err, os.ErrPermission):
		return engine.CodeIOError
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return engine.CodeIOError
	}
	return engine.CodeFormatError
}
