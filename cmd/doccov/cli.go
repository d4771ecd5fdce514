package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/impact"
	"github.com/hpungsan/doccov/internal/ops"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(svc *ops.Service) *cli.App {
	app := &cli.App{
		Name:    "doccov",
		Usage:   "Documentation coverage, drift and API diffs",
		Version: Version,
		Commands: []*cli.Command{
			evaluateCmd(svc),
			driftCmd(svc),
			diffCmd(svc),
			recordCmd(svc),
			historyCmd(svc),
			pruneCmd(svc),
			analyzeCmd(svc),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func refFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "ref",
		Usage: "Treat spec arguments as owner/repo/path references under the spec root",
	}
}

func rulesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "rules",
		Usage: "Comma-separated rule overrides, e.g. has-examples=warn,has-params=off",
	}
}

// evaluateCmd creates the evaluate command.
func evaluateCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "Score documentation quality of a spec",
		ArgsUsage: "<spec.json|->",
		Flags: []cli.Flag{
			refFlag(),
			rulesFlag(),
			&cli.StringFlag{Name: "raw-docs", Usage: "JSON file mapping export id to raw doc comment"},
		},
		Action: func(c *cli.Context) error {
			in, err := specArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			rules, err := parseRules(c.String("rules"))
			if err != nil {
				return outputError(err)
			}
			input := ops.EvaluateInput{SpecInput: in, Rules: rules}
			if path := c.String("raw-docs"); path != "" {
				if err := readJSONFile(path, &input.RawDocs); err != nil {
					return outputError(err)
				}
			}

			output, err := svc.Evaluate(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// driftCmd creates the drift command.
func driftCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "drift",
		Usage:     "Report documentation that disagrees with signatures",
		ArgsUsage: "<spec.json|->",
		Flags: []cli.Flag{
			refFlag(),
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only report this drift kind"},
		},
		Action: func(c *cli.Context) error {
			in, err := specArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			output, err := svc.Drift(c.Context, ops.DriftInput{SpecInput: in, Type: c.String("type")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// diffCmd creates the diff command.
func diffCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Compare two spec versions",
		ArgsUsage: "<base.json> <head.json>",
		Flags: []cli.Flag{
			refFlag(),
			rulesFlag(),
			&cli.StringSliceFlag{Name: "markdown", Aliases: []string{"m"}, Usage: "Markdown file to scan for stale references (repeatable)"},
			&cli.BoolFlag{Name: "patch", Usage: "Print unified signature diffs of breaking exports instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return outputError(errors.NewInvalidRequest("diff requires <base> and <head>"))
			}
			base, err := specArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			head, err := specArg(c, 1)
			if err != nil {
				return outputError(err)
			}
			rules, err := parseRules(c.String("rules"))
			if err != nil {
				return outputError(err)
			}
			files, err := readMarkdown(c.StringSlice("markdown"))
			if err != nil {
				return outputError(err)
			}

			output, err := svc.Compare(c.Context, ops.CompareInput{
				Base:          base,
				Head:          head,
				MarkdownFiles: files,
				Rules:         rules,
				Patches:       c.Bool("patch"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("patch") {
				return outputPatches(output.Patches)
			}
			return outputJSON(output)
		},
	}
}

// recordCmd creates the record command.
func recordCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Evaluate a spec and append a coverage snapshot",
		ArgsUsage: "<spec.json|->",
		Flags: []cli.Flag{
			refFlag(),
			&cli.StringFlag{Name: "version", Usage: "Version label (defaults to the spec version)"},
			&cli.StringFlag{Name: "commit", Usage: "Commit SHA"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Value: "manual", Usage: "Snapshot source: ci|manual|scheduled"},
		},
		Action: func(c *cli.Context) error {
			in, err := specArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			output, err := svc.Record(c.Context, ops.RecordInput{
				SpecInput: in,
				Version:   c.String("version"),
				Commit:    c.String("commit"),
				Source:    c.String("source"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the coverage trend of a package",
		ArgsUsage: "<package>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum snapshots (default 20, max 100)"},
		},
		Action: func(c *cli.Context) error {
			output, err := svc.History(c.Context, ops.HistoryInput{
				Package: c.Args().First(),
				Limit:   c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// pruneCmd creates the prune command.
func pruneCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "prune",
		Usage:     "Delete old snapshots by count or retention tier",
		ArgsUsage: "<package>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "keep", Usage: "Keep this many newest snapshots"},
			&cli.StringFlag{Name: "tier", Usage: "Retention tier: free|team|pro (defaults to config)"},
		},
		Action: func(c *cli.Context) error {
			output, err := svc.Prune(c.Context, ops.PruneInput{
				Package: c.Args().First(),
				Keep:    c.Int("keep"),
				Tier:    c.String("tier"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Velocity, projection, regressions and milestones of a package",
		ArgsUsage: "<package>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Analyze only the newest N snapshots"},
		},
		Action: func(c *cli.Context) error {
			output, err := svc.Analyze(c.Context, ops.AnalyzeInput{
				Package: c.Args().First(),
				Limit:   c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// specArg builds the spec input for positional argument i: a reference
// with --ref, stdin for "-", otherwise the named file.
func specArg(c *cli.Context, i int) (ops.SpecInput, error) {
	arg := c.Args().Get(i)
	if arg == "" {
		return ops.SpecInput{}, errors.NewInvalidRequest("spec argument is required")
	}
	if c.Bool("ref") {
		ref := parseRef(arg)
		return ops.SpecInput{Ref: &ref}, nil
	}

	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return ops.SpecInput{}, errors.NewNotFound(arg)
		}
		return ops.SpecInput{}, errors.NewInternal(err)
	}
	return ops.SpecInput{Spec: json.RawMessage(data)}, nil
}

// parseRef splits "owner/repo/path/to/spec.json". Arguments with fewer
// than three segments are a bare path.
func parseRef(s string) ops.SpecRef {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) < 3 {
		return ops.SpecRef{Path: s}
	}
	return ops.SpecRef{Owner: parts[0], Repo: parts[1], Path: parts[2]}
}

// parseRules parses "id=severity,id=severity" into a map.
func parseRules(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	rules := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, sev, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid rule override %q (want id=severity)", part))
		}
		rules[strings.TrimSpace(id)] = strings.TrimSpace(sev)
	}
	return rules, nil
}

// readMarkdown loads markdown files for docs impact analysis.
func readMarkdown(paths []string) ([]impact.File, error) {
	files := make([]impact.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				return nil, errors.NewNotFound(p)
			}
			return nil, errors.NewInternal(err)
		}
		files = append(files, impact.File{Path: p, Content: string(data)})
	}
	return files, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return errors.NewNotFound(path)
		}
		return errors.NewInternal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("%s: %v", path, err))
	}
	return nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputPatches prints signature patches in export name order.
func outputPatches(patches map[string]string) error {
	names := make([]string, 0, len(patches))
	for name := range patches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := io.WriteString(os.Stdout, patches[name]); err != nil {
			return err
		}
	}
	return nil
}

// outputError formats error for CLI.
func outputError(err error) error {
	var dErr *errors.DocCovError
	if stderrors.As(err, &dErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	if stderrors.Is(err, context.Canceled) {
		return cli.Exit("cancelled", 1)
	}
	return cli.Exit(err.Error(), 1)
}
