// Package scripts provides the packaged N-1 contingency script.
//
// The script is embedded at build time. Its parameter header names the
// snapshot to read and the contingency file to write; Install renders the
// header for one run and writes the result into the run directory.
package scripts

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/go-git/go-billy/v5"

	"github.com/gridops-tools/ctgrun/iox"
)

//go:embed n1ctg.p.tmpl
var embeddedScript string

// parseOnce ensures the template is parsed only once per process.
var parseOnce sync.Once
var parsed *template.Template
var parseErr error

// Header parameter names.
const (
	ParamSavFile = "savfile"
	ParamOtgFile = "otgfile"
)

// Params is the script's parameter header.
type Params struct {
	SavFile string
	OtgFile string
}

// ErrMissingParam is returned by ParseHeader when a required parameter is absent.
var ErrMissingParam = errors.New("missing script parameter")

// EmbeddedChecksum returns the SHA256 checksum of the embedded script template.
func EmbeddedChecksum() string {
	hash := sha256.Sum256([]byte(embeddedScript))
	return hex.EncodeToString(hash[:])
}

// EmbeddedSize returns the size of the embedded script template in bytes.
func EmbeddedSize() int {
	return len(embeddedScript)
}

func tmpl() (*template.Template, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.New("n1ctg").Option("missingkey=error").Parse(embeddedScript)
	})
	return parsed, parseErr
}

// Render returns the packaged script with its header set to p.
func Render(p Params) ([]byte, error) {
	if p.SavFile == "" || p.OtgFile == "" {
		return nil, fmt.Errorf("%w: savfile and otgfile are required", ErrMissingParam)
	}
	for _, v := range []string{p.SavFile, p.OtgFile} {
		if strings.ContainsAny(v, "\"\r\n") {
			return nil, fmt.Errorf("script parameter %q contains a double quote or line break", v)
		}
	}
	t, err := tmpl()
	if err != nil {
		return nil, fmt.Errorf("parse packaged script: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render packaged script: %w", err)
	}
	return buf.Bytes(), nil
}

// Install renders the packaged script and writes it to name on fs.
func Install(fs billy.Filesystem, name string, p Params) error {
	data, err := Render(p)
	if err != nil {
		return err
	}
	return iox.WriteFile(fs, name, data, 0o644)
}

var headerLine = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)\s*=\s*"([^"]*)"\s*$`)

// ParseHeader reads the `$name = "value"` assignments of a script and
// returns the savfile and otgfile parameters.
func ParseHeader(data []byte) (Params, error) {
	vals := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m := headerLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		if _, seen := vals[m[1]]; !seen {
			vals[m[1]] = m[2]
		}
	}
	if err := sc.Err(); err != nil {
		return Params{}, fmt.Errorf("read script header: %w", err)
	}

	p := Params{SavFile: vals[ParamSavFile], OtgFile: vals[ParamOtgFile]}
	if p.SavFile == "" {
		return Params{}, fmt.Errorf("%w: $%s", ErrMissingParam, ParamSavFile)
	}
	if p.OtgFile == "" {
		return Params{}, fmt.Errorf("%w: $%s", ErrMissingParam, ParamOtgFile)
	}
	return p, nil
}

// RewriteHeader returns script with its savfile and otgfile assignments set
// to p. Both assignments must already be present.
func RewriteHeader(script []byte, p Params) ([]byte, error) {
	if _, err := ParseHeader(script); err != nil {
		return nil, err
	}
	for _, v := range []string{p.SavFile, p.OtgFile} {
		if strings.ContainsAny(v, "\"\r\n") {
			return nil, fmt.Errorf("script parameter %q contains a double quote or line break", v)
		}
	}
	want := map[string]string{ParamSavFile: p.SavFile, ParamOtgFile: p.OtgFile}

	lines := strings.SplitAfter(string(script), "\n")
	for i, line := range lines {
		body := strings.TrimRight(line, "\r\n")
		m := headerLine.FindStringSubmatch(strings.TrimSpace(body))
		if m == nil {
			continue
		}
		v, ok := want[m[1]]
		if !ok {
			continue
		}
		indent := body[:len(body)-len(strings.TrimLeft(body, " \t"))]
		lines[i] = indent + "$" + m[1] + " = \"" + v + "\"" + line[len(body):]
		delete(want, m[1])
	}
	return []byte(strings.Join(lines, "")), nil
}
