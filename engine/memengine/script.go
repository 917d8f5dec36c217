package memengine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/scripts"
)

// Contingency is one single-branch outage in a contingency file.
type Contingency struct {
	Label   string
	From    int
	To      int
	Circuit string
}

// runScript reads the script's parameter header, loads the case it names
// and writes one outage per in-service branch to the contingency file.
func runScript(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileCode(err)
	}
	params, err := scripts.ParseHeader(data)
	if err != nil {
		return engine.CodeFormatError
	}

	c, err := ReadCase(params.SavFile)
	if err != nil {
		return engine.CodeScriptFailed
	}

	f, err := os.Create(params.OtgFile)
	if err != nil {
		return engine.CodeScriptFailed
	}
	if err := WriteContingencies(f, N1(c)); err != nil {
		_ = f.Close()
		_ = os.Remove(params.OtgFile)
		return engine.CodeScriptFailed
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(params.OtgFile)
		return engine.CodeScriptFailed
	}
	return engine.CodeOK
}

// N1 returns one outage per in-service branch of c, in record order.
func N1(c *Case) []Contingency {
	out := make([]Contingency, 0, len(c.Branches))
	for _, br := range c.Branches {
		if br.Status != 1 {
			continue
		}
		out = append(out, Contingency{
			Label:   fmt.Sprintf("Branch %d-%d ckt %s", br.From, br.To, br.Circuit),
			From:    br.From,
			To:      br.To,
			Circuit: br.Circuit,
		})
	}
	return out
}

// WriteContingencies writes cs in contingency-file format.
func WriteContingencies(w io.Writer, cs []Contingency) error {
	bw := bufio.NewWriter(w)
	for _, c := range cs {
		fmt.Fprintf(bw, "contingency '%s'\n", c.Label)
		fmt.Fprintf(bw, "  open branch from bus %d to bus %d ckt %s\n", c.From, c.To, c.Circuit)
		fmt.Fprintf(bw, "end\n")
	}
	return bw.Flush()
}

var (
	ctgHeader = regexp.MustCompile(`^contingency '(.*)'$`)
	ctgOpen   = regexp.MustCompile(`^open branch from bus (\d+) to bus (\d+) ckt (\S+)$`)
)

// ReadContingencies parses a contingency file.
func ReadContingencies(r io.Reader) ([]Contingency, error) {
	var (
		out  []Contingency
		cur  *Contingency
		line int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
		case text == "end":
			if cur == nil {
				return nil, fmt.Errorf("line %d: end without contingency", line)
			}
			out = append(out, *cur)
			cur = nil
		case ctgHeader.MatchString(text):
			if cur != nil {
				return nil, fmt.Errorf("line %d: nested contingency", line)
			}
			cur = &Contingency{Label: ctgHeader.FindStringSubmatch(text)[1]}
		case ctgOpen.MatchString(text):
			if cur == nil {
				return nil, fmt.Errorf("line %d: action outside contingency", line)
			}
			m := ctgOpen.FindStringSubmatch(text)
			cur.From, _ = strconv.Atoi(m[1])
			cur.To, _ = strconv.Atoi(m[2])
			cur.Circuit = m[3]
		default:
			return nil, fmt.Errorf("line %d: unrecognized %q", line, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, errors.New("unterminated contingency")
	}
	return out, nil
}
