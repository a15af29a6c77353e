package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoProject               = errors.New("no project or workspace specified")
	ErrBothProjectAndWorkspace = errors.New("specify either a project or a workspace, not both")
	ErrNoScheme                = errors.New("could not auto-detect scheme")
)

// ProjectRef points at exactly one of an .xcodeproj or an .xcworkspace.
type ProjectRef struct {
	Project   string
	Workspace string
}

func (p ProjectRef) Validate() error {
	switch {
	case p.Project != "" && p.Workspace != "":
		return ErrBothProjectAndWorkspace
	case p.Project == "" && p.Workspace == "":
		return ErrNoProject
	}
	return nil
}

// Args returns the -workspace/-project flag pair.
func (p ProjectRef) Args() []string {
	if p.Workspace != "" {
		return []string{"-workspace", p.Workspace}
	}
	if p.Project != "" {
		return []string{"-project", p.Project}
	}
	return nil
}

type XcodeListInfo struct {
	Schemes        []string `json:"schemes"`
	Configurations []string `json:"configurations"`
	Name           string   `json:"name"`
}

type xcodebuildListJSON struct {
	Project   *XcodeListInfo `json:"project,omitempty"`
	Workspace *XcodeListInfo `json:"workspace,omitempty"`
}

// SchemeLister returns the schemes of a project or workspace in the order
// xcodebuild reports them.
type SchemeLister interface {
	ListSchemes(ctx context.Context, ref ProjectRef) ([]string, error)
}

// JSONSchemeLister reads `xcodebuild -list -json`.
type JSONSchemeLister struct {
	Runner CommandRunner
}

func (l JSONSchemeLister) ListSchemes(ctx context.Context, ref ProjectRef) ([]string, error) {
	info, err := XcodebuildList(ctx, l.Runner, ref)
	if err != nil {
		return nil, err
	}
	return info.Schemes, nil
}

// XcodebuildList returns schemes/configurations for a workspace or project using `xcodebuild -list -json`.
func XcodebuildList(ctx context.Context, r CommandRunner, ref ProjectRef) (XcodeListInfo, error) {
	if len(ref.Args()) == 0 {
		return XcodeListInfo{}, ErrNoProject
	}
	args := append([]string{"xcodebuild", "-list", "-json"}, ref.Args()...)
	out, err := Capture(ctx, r, CmdSpec{Path: "xcrun", Args: args})
	if err != nil {
		return XcodeListInfo{}, fmt.Errorf("xcodebuild -list -json: %w", err)
	}

	var parsed xcodebuildListJSON
	if err := json.Unmarshal([]byte(out.Stdout), &parsed); err != nil {
		// Some Xcode versions may emit extra prefixes; attempt to extract JSON object.
		trim := extractJSONObject(out.Stdout)
		if trim == "" {
			return XcodeListInfo{}, fmt.Errorf("failed to parse xcodebuild -list -json output: %w", err)
		}
		if err := json.Unmarshal([]byte(trim), &parsed); err != nil {
			return XcodeListInfo{}, fmt.Errorf("failed to parse xcodebuild -list -json output: %w", err)
		}
	}

	var info XcodeListInfo
	if parsed.Workspace != nil {
		info = *parsed.Workspace
	}
	if parsed.Project != nil {
		if info.Name == "" {
			info.Name = parsed.Project.Name
		}
		if len(info.Schemes) == 0 {
			info.Schemes = parsed.Project.Schemes
		}
		if len(info.Configurations) == 0 {
			info.Configurations = parsed.Project.Configurations
		}
	}
	return info, nil
}

var jsonObjectRE = regexp.MustCompile(`(?s)\{.*\}`)

func extractJSONObject(s string) string {
	m := jsonObjectRE.FindString(s)
	return strings.TrimSpace(m)
}

// TextSchemeLister reads plain `xcodebuild -list` output.
type TextSchemeLister struct {
	Runner CommandRunner
}

func (l TextSchemeLister) ListSchemes(ctx context.Context, ref ProjectRef) ([]string, error) {
	if len(ref.Args()) == 0 {
		return nil, ErrNoProject
	}
	args := append([]string{"xcodebuild", "-list"}, ref.Args()...)
	out, err := Capture(ctx, l.Runner, CmdSpec{Path: "xcrun", Args: args})
	if err != nil {
		return nil, fmt.Errorf("xcodebuild -list: %w", err)
	}
	return ParseSchemesText(out.Stdout), nil
}

// ParseSchemesText collects the lines after the "Schemes:" header up to the
// next blank line. Lines starting with "Build" are skipped.
func ParseSchemesText(out string) []string {
	schemes := []string{}
	in := false
	for _, ln := range strings.Split(out, "\n") {
		ln = strings.TrimSpace(ln)
		if strings.Contains(ln, "Schemes:") {
			in = true
			continue
		}
		if !in {
			continue
		}
		if ln == "" {
			if len(schemes) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(ln, "Build") {
			continue
		}
		schemes = append(schemes, ln)
	}
	return schemes
}

// FallbackSchemeLister tries each lister in turn and returns the first
// non-empty result.
type FallbackSchemeLister []SchemeLister

func (f FallbackSchemeLister) ListSchemes(ctx context.Context, ref ProjectRef) ([]string, error) {
	var errs []error
	for _, l := range f {
		schemes, err := l.ListSchemes(ctx, ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(schemes) > 0 {
			return schemes, nil
		}
	}
	return nil, errors.Join(errs...)
}

func DefaultSchemeLister(r CommandRunner) SchemeLister {
	return FallbackSchemeLister{JSONSchemeLister{Runner: r}, TextSchemeLister{Runner: r}}
}

// BuildArgs is the xcodebuild invocation for one build or test run.
type BuildArgs struct {
	Action        string // "build" or "test"
	Clean         bool
	Ref           ProjectRef
	Scheme        string
	Configuration string
	Destination   string
	ResultBundle  string
	OnlyTesting   string
}

// Argv returns the arguments passed to xcrun.
func (b BuildArgs) Argv() []string {
	args := []string{"xcodebuild", "-quiet"}
	if b.Clean {
		args = append(args, "clean")
	}
	args = append(args, b.Action)
	args = append(args, b.Ref.Args()...)
	args = append(args, "-scheme", b.Scheme)
	if b.Configuration != "" {
		args = append(args, "-configuration", b.Configuration)
	}
	args = append(args, "-destination", b.Destination, "-resultBundlePath", b.ResultBundle)
	if b.OnlyTesting != "" {
		args = append(args, "-only-testing", b.OnlyTesting)
	}
	return args
}
