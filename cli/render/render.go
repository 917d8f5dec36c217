// Package render provides centralized output rendering for the ctgrun CLI.
//
// Format selection:
//   - a TTY defaults to table, anything else to json
//   - --format always overrides the default
//   - invalid formats are errors
//
// --no-color affects table output only. TUI mode uses its own styling.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/gridops-tools/ctgrun/cli/tui"
	"github.com/gridops-tools/ctgrun/types"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	formatStr := c.String("format")
	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}

	// Apply default format based on TTY detection
	if format == "" {
		if f, ok := out.(*os.File); ok && isTTY(f) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Format returns the selected format.
func (r *Renderer) Format() Format {
	return r.format
}

// RenderTUI starts the read-only viewer for the given view type.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

func (r *Renderer) renderTable(data any) error {
	switch d := data.(type) {
	case *types.ViolationReport:
		return r.renderReport(d)
	case types.Table:
		return r.renderSheet(d)
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		return r.renderSliceTable(v)
	}

	return r.renderStructTable(data)
}

var headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)

func (r *Renderer) heading(s string) string {
	if r.noColor {
		return s
	}
	return headingStyle.Render(s)
}

// renderReport prints each violation table under its sheet name.
func (r *Renderer) renderReport(rpt *types.ViolationReport) error {
	for i, t := range rpt.Tables() {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		if err := r.renderSheet(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderSheet(t types.Table) error {
	fmt.Fprintf(r.out, "%s (%d rows)\n", r.heading(t.Name), t.Len())
	if len(t.Columns) == 0 {
		fmt.Fprintln(r.out, "(no columns)")
		return nil
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	cols := columnsOf(indirect(v.Index(0)))
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols.names, "\t"))
	for i := 0; i < v.Len(); i++ {
		fmt.Fprintln(w, strings.Join(cols.values(indirect(v.Index(i))), "\t"))
	}
	return w.Flush()
}

// renderStructTable prints one value as "name: value" lines.
func (r *Renderer) renderStructTable(data any) error {
	v := indirect(reflect.ValueOf(data))
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		cols := columnsOf(v)
		for i, val := range cols.values(v) {
			fmt.Fprintf(w, "%s:\t%s\n", cols.names[i], val)
		}
	default:
		fmt.Fprintf(w, "%s\n", cell(v))
	}
	return w.Flush()
}

// columns are the table headers of a struct or map row.
type columns struct {
	names []string
	// fields holds struct field indexes, parallel to names; nil for maps.
	fields []int
}

func columnsOf(v reflect.Value) columns {
	var c columns
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for _, i := range visibleFields(t) {
			c.names = append(c.names, fieldName(t.Field(i)))
			c.fields = append(c.fields, i)
		}
	case reflect.Map:
		for _, k := range sortedMapKeys(v) {
			c.names = append(c.names, fmt.Sprint(k.Interface()))
		}
	}
	return c
}

func (c columns) values(v reflect.Value) []string {
	out := make([]string, len(c.names))
	switch v.Kind() {
	case reflect.Struct:
		for n, i := range c.fields {
			out[n] = cell(v.Field(i))
		}
	case reflect.Map:
		byName := make(map[string]reflect.Value, v.Len())
		for _, k := range v.MapKeys() {
			byName[fmt.Sprint(k.Interface())] = v.MapIndex(k)
		}
		for n, name := range c.names {
			if val, ok := byName[name]; ok {
				out[n] = cell(val)
			}
		}
	}
	return out
}

// fieldName is the json tag name, or the lower-cased Go name.
func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return strings.ToLower(f.Name)
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	reportType   = reflect.TypeOf(types.ViolationReport{})
)

// cell formats one value for a table cell.
func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}

	switch v.Type() {
	case timeType:
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	case durationType:
		return v.Interface().(time.Duration).String()
	case reportType:
		rpt := v.Interface().(types.ViolationReport)
		return fmt.Sprintf("voltage=%d flow=%d unsolved=%d",
			rpt.VoltageViolations.Len(), rpt.PerUnitFlowViolations.Len(), rpt.UnsolvedContingencies.Len())
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, " ")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		keys := sortedMapKeys(v)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%v=%s", k.Interface(), cell(v.MapIndex(k))))
		}
		return strings.Join(parts, " ")
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

// indirect follows pointers and interfaces; nil yields the zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// visibleFields returns the indexes of exported fields not tagged json:"-".
func visibleFields(t reflect.Type) []int {
	var out []int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("json") == "-" {
			continue
		}
		out = append(out, i)
	}
	return out
}

func sortedMapKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
