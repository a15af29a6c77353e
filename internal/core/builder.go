package core

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vburojevic/xcpipe/internal/util"
)

const (
	DefaultConfiguration = "Debug"
	GenericDestination   = "generic/platform=iOS Simulator"
)

// Outcome is the result of one build or test invocation. A failed build is
// an Outcome with Success false, not an error.
type Outcome struct {
	Success     bool          `json:"success"`
	BundleID    string        `json:"xcresult_id"`
	Stderr      string        `json:"-"`
	ExitCode    int           `json:"exit_code"`
	Duration    time.Duration `json:"-"`
	Destination string        `json:"destination"`
}

// BuildRunner drives xcodebuild for one project or workspace and stores the
// result bundle in Cache.
type BuildRunner struct {
	Ref           ProjectRef
	Scheme        string
	Configuration string
	Simulator     string

	Cache   *XCResultCache
	Runner  CommandRunner
	Schemes SchemeLister
	Devices DeviceLister
	Emit    Emitter

	// ProjectDir holds the device preference config. Defaults to the
	// directory containing the project or workspace.
	ProjectDir string
	SkillName  string

	// OnLine receives every output line while xcodebuild runs.
	OnLine func(string)

	cfg *Config
}

func (b *BuildRunner) runner() CommandRunner {
	if b.Runner == nil {
		return ExecRunner{}
	}
	return b.Runner
}

func (b *BuildRunner) config() *Config {
	if b.cfg != nil {
		return b.cfg
	}
	dir := b.ProjectDir
	if dir == "" {
		switch {
		case b.Ref.Project != "":
			dir = filepath.Dir(b.Ref.Project)
		case b.Ref.Workspace != "":
			dir = filepath.Dir(b.Ref.Workspace)
		}
	}
	b.cfg = LoadConfig(dir, b.SkillName, b.Emit)
	return b.cfg
}

// AutoDetectScheme returns the first scheme of the project, or "".
func (b *BuildRunner) AutoDetectScheme(ctx context.Context) string {
	lister := b.Schemes
	if lister == nil {
		lister = DefaultSchemeLister(b.runner())
	}
	schemes, err := lister.ListSchemes(ctx, b.Ref)
	if err != nil {
		emitMaybe(b.Emit, Warn("scheme", fmt.Sprintf("Error auto-detecting scheme: %v", err)))
		return ""
	}
	if len(schemes) == 0 {
		return ""
	}
	return schemes[0]
}

func (b *BuildRunner) availableDevices(ctx context.Context) ([]string, error) {
	lister := b.Devices
	if lister == nil {
		lister = SimctlDeviceLister{Runner: b.runner()}
	}
	return lister.AvailableDevices(ctx)
}

func DestinationFor(name string) string {
	return "platform=iOS Simulator,name=" + name
}

var destinationNameRE = regexp.MustCompile(`name=([^,]+)`)

// SimulatorNameFromDestination returns "" for destinations without a name.
func SimulatorNameFromDestination(dest string) string {
	m := destinationNameRE.FindStringSubmatch(dest)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// SimulatorDestination resolves the -destination value: the explicit
// simulator, then the configured or last used one if it is installed, then
// the first available iPhone, then the generic simulator platform.
func (b *BuildRunner) SimulatorDestination(ctx context.Context) string {
	if b.Simulator != "" {
		return DestinationFor(b.Simulator)
	}

	var devices []string
	var listErr error
	listed := false
	list := func() ([]string, error) {
		if !listed {
			devices, listErr = b.availableDevices(ctx)
			listed = true
		}
		return devices, listErr
	}

	cfg := b.config()
	if preferred := cfg.PreferredSimulator(); preferred != "" {
		lines, err := list()
		if err == nil && SimulatorInstalled(lines, preferred) {
			return DestinationFor(preferred)
		}
		emitMaybe(b.Emit, Warn("destination", fmt.Sprintf("Preferred simulator '%s' not available", preferred)))
		if !cfg.FallbackToAnyIPhone() {
			return DestinationFor(preferred)
		}
		emitMaybe(b.Emit, Status("destination", "Falling back to auto-detection...", nil))
	}

	lines, err := list()
	if err != nil {
		emitMaybe(b.Emit, Warn("destination", fmt.Sprintf("Could not auto-detect simulator: %v", err)))
		return GenericDestination
	}
	if name := FirstIPhone(lines); name != "" {
		return DestinationFor(name)
	}
	return GenericDestination
}

// Build runs `xcodebuild build`, optionally preceded by clean.
func (b *BuildRunner) Build(ctx context.Context, clean bool) (Outcome, error) {
	conf := b.Configuration
	if conf == "" {
		conf = DefaultConfiguration
	}
	return b.run(ctx, "build", BuildArgs{Action: "build", Clean: clean, Configuration: conf})
}

// Test runs `xcodebuild test`, limited to suite when it is set.
func (b *BuildRunner) Test(ctx context.Context, suite string) (Outcome, error) {
	return b.run(ctx, "test", BuildArgs{Action: "test", OnlyTesting: suite})
}

func (b *BuildRunner) run(ctx context.Context, cmdName string, args BuildArgs) (Outcome, error) {
	if err := b.Ref.Validate(); err != nil {
		return Outcome{}, err
	}
	if b.Cache == nil {
		c, err := NewXCResultCache("")
		if err != nil {
			return Outcome{}, err
		}
		b.Cache = c
	}
	if b.Scheme == "" {
		b.Scheme = b.AutoDetectScheme(ctx)
		if b.Scheme == "" {
			return Outcome{}, ErrNoScheme
		}
	}

	id := b.Cache.NewID(DefaultIDPrefix)
	bundlePath := b.Cache.GetPath(id)

	args.Ref = b.Ref
	args.Scheme = b.Scheme
	args.Destination = b.SimulatorDestination(ctx)
	args.ResultBundle = bundlePath
	argv := args.Argv()

	emitMaybe(b.Emit, Status(cmdName, "Running "+formatCmd("xcrun", argv), map[string]any{
		"scheme":      b.Scheme,
		"destination": args.Destination,
		"xcresult_id": id,
	}))

	spec := CmdSpec{Path: "xcrun", Args: argv, StdoutLine: b.OnLine, StderrLine: b.OnLine}
	out, err := Capture(ctx, b.runner(), spec)
	if err != nil && !IsExitError(err) {
		if ctx.Err() != nil {
			return Outcome{Destination: args.Destination}, ctx.Err()
		}
		emitMaybe(b.Emit, Err(cmdName, ErrorObject{
			Code:    "xcodebuild_failed",
			Message: fmt.Sprintf("Error executing %s", cmdName),
			Detail:  err.Error(),
		}))
		return Outcome{Stderr: err.Error(), ExitCode: out.ExitCode, Destination: args.Destination}, nil
	}

	outcome := Outcome{
		Success:     err == nil && out.ExitCode == 0,
		Stderr:      out.Stderr,
		ExitCode:    out.ExitCode,
		Duration:    out.Duration,
		Destination: args.Destination,
	}

	// xcodebuild normally writes the bundle even when the build fails.
	if !util.Exists(bundlePath) {
		emitMaybe(b.Emit, Warn(cmdName, "xcresult bundle was not created"))
		return outcome, nil
	}
	outcome.BundleID = id

	if err := b.Cache.SaveStderr(id, out.Stderr); err != nil {
		emitMaybe(b.Emit, Warn(cmdName, err.Error()))
	}
	if outcome.Success {
		b.rememberSimulator(cmdName, args.Destination)
	}
	return outcome, nil
}

func (b *BuildRunner) rememberSimulator(cmdName, dest string) {
	name := SimulatorNameFromDestination(dest)
	if name == "" {
		return
	}
	cfg := b.config()
	cfg.UpdateLastUsedSimulator(name)
	if err := cfg.Save(); err != nil {
		emitMaybe(b.Emit, Warn(cmdName, fmt.Sprintf("Could not update config: %v", err)))
	}
}
