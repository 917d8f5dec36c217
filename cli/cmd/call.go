package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/cli/config"
	"github.com/gridops-tools/ctgrun/cli/render"
	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/engine/memengine"
	"github.com/gridops-tools/ctgrun/log"
	"github.com/gridops-tools/ctgrun/ops"
)

// opRunContingencyAnalysis needs the full pipeline settings.
const opRunContingencyAnalysis = "run_contingency_analysis"

// CallCommand returns the call command.
// Call invokes one named operation against a case, the way an automation
// client would, and prints the operation's reply.
func CallCommand() *cli.Command {
	flags := []cli.Flag{ConfigFlag}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, pipelineFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "params", Usage: "Operation arguments as a JSON object"},
		&cli.StringFlag{Name: "save", Usage: "Save the case here after a successful call"},
		&cli.BoolFlag{Name: "verbose", Usage: "Log stage details at debug level"},
	)
	return &cli.Command{
		Name:      "call",
		Usage:     "Invoke a named operation (see 'ctgrun ops')",
		ArgsUsage: "<operation> [name=value ...]",
		Flags:     flags,
		Action:    callAction,
	}
}

// OpsCommand returns the ops command, which lists the named operations.
func OpsCommand() *cli.Command {
	return &cli.Command{
		Name:   "ops",
		Usage:  "List the named operations and their arguments",
		Flags:  ReadOnlyFlags(),
		Action: opsAction,
	}
}

// parseCallParams merges the --params JSON object with name=value arguments.
// Arguments win over JSON keys.
func parseCallParams(raw string, args []string) (ops.Params, error) {
	p := ops.Params{}
	if strings.TrimSpace(raw) != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("invalid --params JSON: %w", err)
		}
	}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid argument %q: want name=value", a)
		}
		p[k] = v
	}
	return p, nil
}

func callAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return usageError("operation name required")
	}
	name := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}
	if c.Bool("tui") {
		return usageError("--tui is not supported for call")
	}

	params, err := parseCallParams(c.String("params"), c.Args().Tail())
	if err != nil {
		return usageError("%v", err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	eng := memengine.New()
	if path := resolveString(c, "case", configVal(cfg, casePathOf)); path != "" && name != "open_case" {
		if eng, err = loadCase(path); err != nil {
			return usageError("%v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := []ops.Option{ops.WithLogger(log.NewLoggerWithWriter(nil, logWriter(c), logLevel(c)))}
	if name == opRunContingencyAnalysis {
		settings, err := resolveRunSettings(c, cfg)
		if err != nil {
			return err
		}
		an, err := newAnalyzer(ctx, settings, logWriter(c), logLevel(c))
		if err != nil {
			return cli.Exit(err.Error(), exitFailure)
		}
		defer func() { _ = an.Close() }()
		opts = append(opts, ops.WithAnalyzer(an.pipelineFunc(eng)))
	}

	reg := ops.New(eng, opts...)
	if _, ok := reg.Lookup(name); !ok {
		return usageError("unknown operation %q (see 'ctgrun ops')", name)
	}

	res := reg.Call(ctx, name, params)
	if res.OK() {
		if err := saveCase(eng, c.String("save")); err != nil {
			res.Status = ops.StatusUnknown
			res.Message = err.Error()
		}
	}

	if err := r.Render(res); err != nil {
		return err
	}
	if !res.OK() {
		return cli.Exit("", exitFailure)
	}
	return nil
}

func casePathOf(cf *config.Config) string { return cf.Engine.Case }

func saveCase(eng engine.Engine, path string) error {
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if code := eng.SaveCase(abs); code != engine.CodeOK {
		return fmt.Errorf("cannot save case %s (engine code %d)", abs, code)
	}
	return nil
}

// OperationRow is the table form of one operation.
type OperationRow struct {
	Name        string `json:"name"`
	Params      string `json:"params"`
	Description string `json:"description"`
}

func opsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}
	if c.Bool("tui") {
		return usageError("--tui is not supported for ops")
	}

	list := ops.New(memengine.New()).List()
	if r.Format() != render.FormatTable {
		return r.Render(list)
	}

	rows := make([]OperationRow, 0, len(list))
	for _, op := range list {
		var ps []string
		for _, p := range op.Params {
			s := p.Name + ":" + p.Type
			if p.Required {
				s += "!"
			}
			ps = append(ps, s)
		}
		rows = append(rows, OperationRow{Name: op.Name, Params: strings.Join(ps, " "), Description: op.Description})
	}
	return r.Render(rows)
}
