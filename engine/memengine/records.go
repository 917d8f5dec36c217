package memengine

import (
	"strconv"
	"strings"

	"github.com/gridops-tools/ctgrun/engine"
)

// AddRecord implements engine.Engine.
//
// fields is a space-separated list of column names and values the matching
// space-separated values; the last value absorbs any remaining text so a
// trailing name column may contain spaces. An existing record with the same
// key is updated in place.
func (e *Engine) AddRecord(kind engine.RecordKind, key, fields, values string) int {
	cols, ok := splitRecord(fields, values)
	if !ok {
		return engine.AddInsufficientInput
	}
	keys := strings.Fields(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch kind {
	case engine.RecordBus:
		return e.addBus(keys, cols)
	case engine.RecordBranch, engine.RecordTransformer:
		return e.addBranch(keys, cols)
	case engine.RecordGenerator:
		return e.addGenerator(keys, cols)
	case engine.RecordLoad:
		return e.addLoad(keys, cols)
	case engine.RecordShunt:
		return e.addShunt(keys, cols)
	default:
		return engine.CodeFormatError
	}
}

type column struct {
	name  string
	value string
}

func splitRecord(fields, values string) ([]column, bool) {
	names := strings.Fields(fields)
	if len(names) == 0 {
		return nil, false
	}
	vals := strings.Fields(values)
	if len(vals) < len(names) {
		return nil, false
	}
	if len(vals) > len(names) {
		tail := strings.Join(vals[len(names)-1:], " ")
		vals = append(vals[:len(names)-1], tail)
	}
	cols := make([]column, len(names))
	for i, n := range names {
		cols[i] = column{name: strings.ToLower(n), value: vals[i]}
	}
	return cols, true
}

func atof(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func atoi(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	return v, err == nil
}

// addBus handles keys "<number>" and "0 <name> <basekv>"; the second form
// addresses an existing bus by name and nominal voltage.
func (e *Engine) addBus(keys []string, cols []column) int {
	if len(keys) == 0 {
		return engine.AddInsufficientInput
	}
	number, ok := atoi(keys[0])
	if !ok {
		return engine.AddInsufficientInput
	}

	idx := -1
	switch {
	case number == 0 && len(keys) >= 3:
		kv, ok := atof(keys[len(keys)-1])
		if !ok {
			return engine.AddInsufficientInput
		}
		name := strings.Join(keys[1:len(keys)-1], " ")
		for i, b := range e.c.Buses {
			if b.Name == name && b.BaseKV == kv {
				idx = i
				break
			}
		}
		if idx < 0 {
			return engine.AddBusNameVoltage
		}
	case number <= 0:
		return engine.AddBusNumberNotPositive
	default:
		idx = e.c.busIndex(number)
	}

	bus := BusRec{Number: number, Type: engine.BusLoad, Vm: 1.0}
	if idx >= 0 {
		bus = e.c.Buses[idx]
	}
	haveKV := idx >= 0

	for _, col := range cols {
		switch col.name {
		case "type":
			t, ok := atoi(col.value)
			if !ok {
				return engine.AddInsufficientInput
			}
			if t < engine.BusSwing || t > engine.BusGenerator {
				return engine.AddBusTypeOutOfRange
			}
			bus.Type = t
		case "basekv":
			kv, ok := atof(col.value)
			if !ok {
				return engine.AddInsufficientInput
			}
			if kv <= 0 {
				return engine.AddBusVoltageNotPositive
			}
			bus.BaseKV = kv
			haveKV = true
		case "busnam":
			bus.Name = col.value
		case "vm":
			v, ok := atof(col.value)
			if !ok {
				return engine.AddInsufficientInput
			}
			bus.Vm = v
		case "va":
			v, ok := atof(col.value)
			if !ok {
				return engine.AddInsufficientInput
			}
			bus.Va = v
		default:
			return engine.CodeFormatError
		}
	}
	if !haveKV {
		return engine.AddInsufficientInput
	}

	if idx >= 0 {
		e.c.Buses[idx] = bus
	} else {
		e.c.Buses = append(e.c.Buses, bus)
	}
	return engine.CodeOK
}

// addBranch handles key "<from> <to> <ckt> [<section>]".
func (e *Engine) addBranch(keys []string, cols []column) int {
	if len(keys) < 3 {
		return engine.AddInsufficientInput
	}
	from, ok1 := atoi(keys[0])
	to, ok2 := atoi(keys[1])
	if !ok1 || !ok2 {
		return engine.AddInsufficientInput
	}
	if from <= 0 || to <= 0 {
		return engine.AddBranchBusOutOfRange
	}
	if from == to {
		return engine.AddBranchSameBus
	}
	if e.c.busIndex(from) < 0 || e.c.busIndex(to) < 0 {
		return engine.AddBusDoesNotExist
	}
	section := 1
	if len(keys) >= 4 {
		s, ok := atoi(keys[3])
		if !ok {
			return engine.AddInsufficientInput
		}
		section = s
	}

	idx := e.c.branchIndex(from, to, keys[2])
	br := BranchRec{From: from, To: to, Circuit: keys[2], Section: section, Status: 1}
	if idx >= 0 {
		br = e.c.Branches[idx]
	}

	for _, col := range cols {
		v, ok := atof(col.value)
		if !ok {
			return engine.AddInsufficientInput
		}
		switch col.name {
		case "st":
			br.Status = int(v)
		case "zsecr":
			br.R = v
		case "zsecx":
			br.X = v
		case "bsec":
			br.B = v
		case "rate[0]", "rate":
			br.Rating = v
		case "flow":
			br.FlowMVA = v
		default:
			return engine.CodeFormatError
		}
	}

	if idx >= 0 {
		e.c.Branches[idx] = br
	} else {
		e.c.Branches = append(e.c.Branches, br)
	}
	return engine.CodeOK
}

// busElementKey parses "<bus> [<id>]" for records attached to a bus.
func (e *Engine) busElementKey(keys []string) (int, string, int) {
	if len(keys) == 0 {
		return 0, "", engine.AddInsufficientInput
	}
	bus, ok := atoi(keys[0])
	if !ok {
		return 0, "", engine.AddInsufficientInput
	}
	if bus <= 0 {
		return 0, "", engine.AddBranchBusOutOfRange
	}
	if e.c.busIndex(bus) < 0 {
		return 0, "", engine.AddBusDoesNotExist
	}
	id := "1"
	if len(keys) >= 2 {
		id = keys[1]
	}
	return bus, id, engine.CodeOK
}

func (e *Engine) addGenerator(keys []string, cols []column) int {
	bus, id, code := e.busElementKey(keys)
	if code != engine.CodeOK {
		return code
	}
	idx := -1
	for i, g := range e.c.Generators {
		if g.Bus == bus && g.ID == id {
			idx = i
		}
	}
	g := GenRec{Bus: bus, ID: id, Status: 1}
	if idx >= 0 {
		g = e.c.Generators[idx]
	}
	for _, col := range cols {
		v, ok := atof(col.value)
		if !ok {
			return engine.AddInsufficientInput
		}
		switch col.name {
		case "st":
			g.Status = int(v)
		case "pgen":
			g.Pgen = v
		case "qgen":
			g.Qgen = v
		case "pmax":
			g.Pmax = v
		case "qmax":
			g.Qmax = v
		case "qmin":
			g.Qmin = v
		default:
			return engine.CodeFormatError
		}
	}
	if idx >= 0 {
		e.c.Generators[idx] = g
	} else {
		e.c.Generators = append(e.c.Generators, g)
	}
	return engine.CodeOK
}

func (e *Engine) addLoad(keys []string, cols []column) int {
	bus, id, code := e.busElementKey(keys)
	if code != engine.CodeOK {
		return code
	}
	idx := -1
	for i, l := range e.c.Loads {
		if l.Bus == bus && l.ID == id {
			idx = i
		}
	}
	l := LoadRec{Bus: bus, ID: id, Status: 1}
	if idx >= 0 {
		l = e.c.Loads[idx]
	}
	for _, col := range cols {
		v, ok := atof(col.value)
		if !ok {
			return engine.AddInsufficientInput
		}
		switch col.name {
		case "st":
			l.Status = int(v)
		case "p":
			l.P = v
		case "q":
			l.Q = v
		default:
			return engine.CodeFormatError
		}
	}
	if idx >= 0 {
		e.c.Loads[idx] = l
	} else {
		e.c.Loads = append(e.c.Loads, l)
	}
	return engine.CodeOK
}

func (e *Engine) addShunt(keys []string, cols []column) int {
	bus, id, code := e.busElementKey(keys)
	if code != engine.CodeOK {
		return code
	}
	idx := -1
	for i, s := range e.c.Shunts {
		if s.Bus == bus && s.ID == id {
			idx = i
		}
	}
	s := ShuntRec{Bus: bus, ID: id, Status: 1}
	if idx >= 0 {
		s = e.c.Shunts[idx]
	}
	for _, col := range cols {
		v, ok := atof(col.value)
		if !ok {
			return engine.AddInsufficientInput
		}
		switch col.name {
		case "st":
			s.Status = int(v)
		case "b":
			s.B = v
		default:
			return engine.CodeFormatError
		}
	}
	if idx >= 0 {
		e.c.Shunts[idx] = s
	} else {
		e.c.Shunts = append(e.c.Shunts, s)
	}
	return engine.CodeOK
}
