// Package engine defines the power-flow engine collaborator.
//
// The engine owns the live in-memory case. Every call returns an integer
// code in the engine's native convention: 0 is success, anything else is a
// call-specific failure listed below. Records are inserted positionally: a
// key string identifies the element and a field list names which columns
// the space-separated values string fills.
package engine

// RecordKind selects the record table an AddRecord call writes to.
type RecordKind int

// Record tables.
const (
	RecordBus RecordKind = iota
	RecordBranch
	RecordTransformer
	RecordGenerator
	RecordLoad
	RecordShunt
)

func (k RecordKind) String() string {
	switch k {
	case RecordBus:
		return "bus"
	case RecordBranch:
		return "branch"
	case RecordTransformer:
		return "transformer"
	case RecordGenerator:
		return "generator"
	case RecordLoad:
		return "load"
	case RecordShunt:
		return "shunt"
	default:
		return "unknown"
	}
}

// Bus types.
const (
	BusSwing     = 0
	BusLoad      = 1
	BusGenerator = 2
)

// BaseMVA is the system base for per-unit conversions.
const BaseMVA = 100.0

// General return codes.
const (
	CodeOK = 0
	// CodeFileNotFound is returned by LoadCase and RunScript when the path does not exist.
	CodeFileNotFound = -10
	// CodeIOError is returned when a file exists but cannot be read or written.
	CodeIOError = -11
	// CodeFormatError is returned when a case or script cannot be decoded.
	CodeFormatError = -12
	// CodeScriptFailed is returned when a script ran but did not complete.
	CodeScriptFailed = -13
	// CodeNotFound is returned by queries for an element that does not exist.
	CodeNotFound = -14
)

// Solve return codes.
const (
	SolveDiverged      = -1
	SolveMaxIterations = -2
	SolveNoSwing       = -3
)

// AddRecord return codes for bus records.
const (
	AddInsufficientInput     = 1
	AddBusNameVoltage        = 2
	AddBusNumberNotPositive  = 3
	AddBusVoltageNotPositive = -2
	AddBusTypeOutOfRange     = 4
)

// AddRecord return codes for branch and bus-attached records.
const (
	AddBranchBusOutOfRange = 2
	AddBusDoesNotExist     = 3
	AddBranchSameBus       = 4
)

// Counts is the number of records in each table of the live case.
type Counts struct {
	Buses      int `json:"num_buses" yaml:"num_buses"`
	Branches   int `json:"num_branches" yaml:"num_branches"`
	Generators int `json:"num_generators" yaml:"num_generators"`
	Loads      int `json:"num_loads" yaml:"num_loads"`
	Shunts     int `json:"num_shunts" yaml:"num_shunts"`
}

// Bus is the queryable state of one bus.
type Bus struct {
	Number int
	Name   string
	BaseKV float64
	Type   int
	// Vm is the voltage magnitude in per-unit.
	Vm float64
	// Va is the voltage angle in degrees.
	Va float64
}

// BranchFlow is the loading of one branch section.
type BranchFlow struct {
	From    int
	To      int
	Circuit string
	// Rating is the branch rating in MVA.
	Rating float64
	// FlowMVA is the apparent power flow at the from end.
	FlowMVA float64
	// Loading is the flow in per-unit of rating.
	Loading float64
}

// Engine is the power-flow engine as seen by the pipeline and the operations.
type Engine interface {
	// LoadCase replaces the live case with the case file at path.
	LoadCase(path string) int
	// SaveCase writes the live case to path.
	SaveCase(path string) int
	// Solve runs an AC power flow on the live case.
	Solve() int
	// AddRecord inserts or updates one record.
	AddRecord(kind RecordKind, key, fields, values string) int
	// RunScript executes a script file against the engine.
	RunScript(path string) int
	// Counts returns the record counts of the live case.
	Counts() Counts
	// BusIndex maps an external bus number to an internal index, or -1.
	BusIndex(number int) int
	// Bus returns the bus at an internal index.
	Bus(index int) (Bus, bool)
	// BranchLoading returns the loading of the branch from-to-circuit.
	BranchLoading(from, to int, circuit string) (BranchFlow, int)
}
