// Package memengine is an in-memory implementation of engine.Engine.
//
// It keeps the case as plain record tables, persists it as msgpack, and
// understands scripts that carry a savfile/otgfile parameter header by
// writing one single-branch outage per in-service branch. It does not solve
// power flow: Solve only checks that the case has a swing bus, and bus
// voltages are whatever the records say.
package memengine

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// caseFormat is the version tag stored in every case file.
const caseFormat = 1

// Case is the persisted form of a power-system case.
type Case struct {
	Format     int         `msgpack:"format"`
	Title      string      `msgpack:"title,omitempty"`
	Buses      []BusRec    `msgpack:"buses"`
	Branches   []BranchRec `msgpack:"branches"`
	Generators []GenRec    `msgpack:"generators"`
	Loads      []LoadRec   `msgpack:"loads"`
	Shunts     []ShuntRec  `msgpack:"shunts"`
}

// BusRec is a bus record.
type BusRec struct {
	Number int     `msgpack:"number"`
	Name   string  `msgpack:"name"`
	BaseKV float64 `msgpack:"basekv"`
	Type   int     `msgpack:"type"`
	Vm     float64 `msgpack:"vm"`
	Va     float64 `msgpack:"va"`
}

// BranchRec is a branch section record.
type BranchRec struct {
	From    int     `msgpack:"from"`
	To      int     `msgpack:"to"`
	Circuit string  `msgpack:"ck"`
	Section int     `msgpack:"sec"`
	Status  int     `msgpack:"st"`
	R       float64 `msgpack:"zsecr"`
	X       float64 `msgpack:"zsecx"`
	B       float64 `msgpack:"bsec"`
	Rating  float64 `msgpack:"rate"`
	FlowMVA float64 `msgpack:"flow"`
}

// GenRec is a generator record.
type GenRec struct {
	Bus    int     `msgpack:"bus"`
	ID     string  `msgpack:"id"`
	Status int     `msgpack:"st"`
	Pgen   float64 `msgpack:"pgen"`
	Qgen   float64 `msgpack:"qgen"`
	Pmax   float64 `msgpack:"pmax"`
	Qmax   float64 `msgpack:"qmax"`
	Qmin   float64 `msgpack:"qmin"`
}

// LoadRec is a load record.
type LoadRec struct {
	Bus    int     `msgpack:"bus"`
	ID     string  `msgpack:"id"`
	Status int     `msgpack:"st"`
	P      float64 `msgpack:"p"`
	Q      float64 `msgpack:"q"`
}

// ShuntRec is a fixed shunt record. B is in per-unit on the system base.
type ShuntRec struct {
	Bus    int     `msgpack:"bus"`
	ID     string  `msgpack:"id"`
	Status int     `msgpack:"st"`
	B      float64 `msgpack:"b"`
}

// ReadCase decodes the case file at path.
func ReadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode case %s: %w", path, err)
	}
	if c.Format != caseFormat {
		return nil, fmt.Errorf("decode case %s: unsupported format %d", path, c.Format)
	}
	return &c, nil
}

// WriteCase encodes c to path. A failed write leaves no file behind.
func WriteCase(path string, c *Case) error {
	c.Format = caseFormat
	data, err := msgpack.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode case: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func (c *Case) busIndex(number int) int {
	for i := range c.Buses {
		if c.Buses[i].Number == number {
			return i
		}
	}
	return -1
}

func (c *Case) branchIndex(from, to int, circuit string) int {
	for i, br := range c.Branches {
		if br.Circuit != circuit {
			continue
		}
		if (br.From == from && br.To == to) || (br.From == to && br.To == from) {
			return i
		}
	}
	return -1
}

func (c *Case) clone() *Case {
	out := &Case{Format: c.Format, Title: c.Title}
	out.Buses = append([]BusRec(nil), c.Buses...)
	out.Branches = append([]BranchRec(nil), c.Branches...)
	out.Generators = append([]GenRec(nil), c.Generators...)
	out.Loads = append([]LoadRec(nil), c.Loads...)
	out.Shunts = append([]ShuntRec(nil), c.Shunts...)
	return out
}
