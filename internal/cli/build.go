package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vburojevic/xcpipe/internal/core"
	"github.com/vburojevic/xcpipe/internal/report"
	"github.com/vburojevic/xcpipe/internal/tui"
)

type buildOptions struct {
	project       string
	workspace     string
	scheme        string
	configuration string
	simulator     string
	clean         bool
	suite         string
}

func (o *buildOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.project, "project", "", "Path to .xcodeproj (auto-detected in the current directory)")
	f.StringVar(&o.workspace, "workspace", "", "Path to .xcworkspace (auto-detected in the current directory)")
	f.StringVar(&o.scheme, "scheme", "", "Scheme (default: first scheme of the project)")
	f.StringVar(&o.simulator, "simulator", "", "Simulator name, e.g. 'iPhone 16 Pro'")
}

func newBuildCmd() *cobra.Command {
	var o buildOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build for the iOS Simulator and print a one-line summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, o, false)
		},
	}
	o.bind(cmd)
	cmd.Flags().StringVar(&o.configuration, "configuration", core.DefaultConfiguration, "Build configuration (Debug|Release)")
	cmd.Flags().BoolVar(&o.clean, "clean", false, "Clean before building")
	return cmd
}

func newTestCmd() *cobra.Command {
	var o buildOptions
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run tests on the iOS Simulator and print a one-line summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, o, true)
		},
	}
	o.bind(cmd)
	cmd.Flags().StringVar(&o.suite, "suite", "", "Only run this test identifier (-only-testing)")
	return cmd
}

var errNoProjectFound = errors.New("no project or workspace specified and none found in current directory")

// detectProject picks the first workspace in dir, else the first project.
func detectProject(dir string) (core.ProjectRef, error) {
	for _, pattern := range []string{"*.xcworkspace", "*.xcodeproj"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		if pattern == "*.xcworkspace" {
			return core.ProjectRef{Workspace: matches[0]}, nil
		}
		return core.ProjectRef{Project: matches[0]}, nil
	}
	return core.ProjectRef{}, errNoProjectFound
}

type buildSummary struct {
	Success      bool     `json:"success"`
	ID           *string  `json:"xcresult_id"`
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
	Hints        []string `json:"hints,omitempty"`
}

func runBuild(cmd *cobra.Command, o buildOptions, test bool) error {
	ac, err := NewAppContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	ref := core.ProjectRef{Project: o.project, Workspace: o.workspace}
	if ref.Project == "" && ref.Workspace == "" {
		wd, err := getwd()
		if err != nil {
			return err
		}
		if ref, err = detectProject(wd); err != nil {
			return ExitError{Code: 2, Err: err}
		}
	}

	b := &core.BuildRunner{
		Ref:           ref,
		Scheme:        o.scheme,
		Configuration: o.configuration,
		Simulator:     o.simulator,
		Cache:         ac.Cache,
		Runner:        ac.Runner,
		Emit:          ac.Emitter,
		ProjectDir:    ac.Settings.ProjectDir,
		SkillName:     ac.Settings.ResolveSkillName(),
	}

	title := "Building"
	if test {
		title = "Testing"
	}
	stopProgress := func() {}
	if ac.Interactive() {
		progress := tui.StartProgress(ac.Err, title+"…")
		b.OnLine = progress.Line
		b.Emit = core.Tee(ac.Emitter, progress)
		stopProgress = progress.Stop
	}

	var outcome core.Outcome
	if test {
		outcome, err = b.Test(ctx, o.suite)
	} else {
		outcome, err = b.Build(ctx, o.clean)
	}
	stopProgress()
	if err != nil {
		return err
	}
	if outcome.BundleID == "" && outcome.Stderr == "" {
		fmt.Fprintln(ac.Err, "Error: Build/test failed without creating xcresult or error output")
		return ExitError{Code: 1}
	}

	path := ""
	if outcome.BundleID != "" {
		path = ac.Cache.GetPath(outcome.BundleID)
	}
	parser, err := core.NewXCResultParser(path, outcome.Stderr, core.ParserOptions{Runner: ac.Runner, Emit: ac.Emitter})
	if err != nil {
		return err
	}
	errCount, warnCount := parser.CountIssues(ctx)
	status := report.Status(outcome.Success)

	var hints []string
	if !outcome.Success {
		hints = report.Hints(parser.Errors(ctx))
	}
	var testSummary *core.TestSummary
	if test && outcome.BundleID != "" {
		testSummary = parser.TestSummary(ctx)
	}

	id := outcome.BundleID
	if id == "" {
		id = "N/A"
	}
	switch {
	case ac.Flags.JSON:
		out := buildSummary{Success: outcome.Success, ErrorCount: errCount, WarningCount: warnCount, Hints: hints}
		if outcome.BundleID != "" {
			out.ID = &outcome.BundleID
		}
		ac.printJSON(out)
	case ac.Flags.Verbose:
		ac.println(report.Verbose(status, errCount, warnCount, id, parser.Errors(ctx), parser.Warnings(ctx), testSummary))
	default:
		line := report.Minimal(status, errCount, warnCount, id, testSummary, hints)
		if ac.Interactive() {
			line = ac.Styles.Colorize(line)
		}
		ac.println(line)
	}

	if !outcome.Success {
		return ExitError{Code: 1}
	}
	return nil
}
