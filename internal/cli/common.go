package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vburojevic/xcpipe/internal/core"
	"github.com/vburojevic/xcpipe/internal/report"
	"github.com/vburojevic/xcpipe/internal/settings"
	"github.com/vburojevic/xcpipe/internal/tui"
)

type GlobalFlags struct {
	JSON       bool
	Verbose    bool
	CacheDir   string
	ProjectDir string
}

// Test seams.
var (
	newRunner     = func() core.CommandRunner { return core.ExecRunner{} }
	settingsDir   = ""
	isTerminal    = func(f *os.File) bool { return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) }
	pickSimulator = tui.PickSimulator
	stdinFile     = os.Stdin
	stderrFile    = os.Stderr
	getwd         = os.Getwd
)

type AppContext struct {
	Settings *settings.Settings
	Flags    GlobalFlags
	Emitter  core.Emitter
	Runner   core.CommandRunner
	Cache    *core.XCResultCache
	Styles   tui.Styles

	Out io.Writer
	Err io.Writer

	progressive *core.ProgressiveCache
}

func NewAppContext(cmd *cobra.Command) (*AppContext, error) {
	loader := settings.NewLoader()
	loader.Dir = settingsDir
	s, err := loader.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	cache, err := core.NewXCResultCache(s.CacheDir)
	if err != nil {
		return nil, err
	}

	errOut := cmd.ErrOrStderr()
	emit := core.Emitter(core.NewTextEmitter(errOut, flags.Verbose))
	if flags.JSON {
		emit = core.NewNDJSONEmitter(errOut)
	}
	return &AppContext{
		Settings: s,
		Flags:    flags,
		Emitter:  emit,
		Runner:   newRunner(),
		Cache:    cache,
		Styles:   tui.DefaultStyles(),
		Out:      cmd.OutOrStdout(),
		Err:      errOut,
	}, nil
}

// Progressive opens the progressive cache on first use.
func (ac *AppContext) Progressive() (*core.ProgressiveCache, error) {
	if ac.progressive != nil {
		return ac.progressive, nil
	}
	p, err := core.NewProgressiveCache(ac.Settings.ProgressiveCacheDir, ac.Settings.CacheMaxAge)
	if err != nil {
		return nil, err
	}
	ac.progressive = p
	return p, nil
}

// Interactive reports whether decorations (colour, spinner, prompts) may be
// drawn: not in JSON mode and stderr is a terminal.
func (ac *AppContext) Interactive() bool {
	return !ac.Flags.JSON && ac.Err == io.Writer(stderrFile) && isTerminal(stderrFile)
}

func (ac *AppContext) println(a ...any) {
	fmt.Fprintln(ac.Out, a...)
}

func (ac *AppContext) printJSON(v any) {
	fmt.Fprintln(ac.Out, report.JSON(v))
}

// openBundle resolves id to a parser over the cached bundle and its stderr
// sidecar. A missing bundle prints the list hint and yields exit code 1.
func (ac *AppContext) openBundle(id string) (*core.XCResultParser, error) {
	if !ac.Cache.Exists(id) {
		fmt.Fprintf(ac.Err, "Error: XCResult bundle not found: %s\n", id)
		fmt.Fprintln(ac.Err, "Use 'xcpipe list' to see available bundles")
		return nil, ExitError{Code: 1}
	}
	p, err := core.NewXCResultParser(ac.Cache.GetPath(id), ac.Cache.Stderr(id), core.ParserOptions{
		Runner: ac.Runner,
		Emit:   ac.Emitter,
	})
	if errors.Is(err, core.ErrBundleNotFound) {
		fmt.Fprintf(ac.Err, "Error: XCResult bundle not found: %s\n", id)
		return nil, ExitError{Code: 1}
	}
	return p, err
}

func PrintFatal(err error) {
	var ee ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", ee.Error())
		}
		os.Exit(ee.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// ExitError carries a process exit code. A nil Err means the message was
// already printed.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e ExitError) Unwrap() error { return e.Err }
