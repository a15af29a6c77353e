package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vburojevic/xcpipe/internal/util"
)

var ErrBundleNotFound = errors.New("xcresult bundle not found")

// Location fields are null in JSON when unknown.
type Location struct {
	File   *string `json:"file"`
	Line   *int    `json:"line"`
	Column *int    `json:"column"`
}

type Issue struct {
	Message  string   `json:"message"`
	Type     string   `json:"type"`
	Location Location `json:"location"`
}

// ResultShape identifies which xcresulttool layout a build-results document
// uses.
type ResultShape int

const (
	ShapeUnknown ResultShape = iota
	// ShapeFlat is the Xcode 16+ layout with top-level errors/warnings.
	ShapeFlat
	// ShapeLegacy is actions._values[0].buildResult.issues.
	ShapeLegacy
)

func (s ResultShape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeLegacy:
		return "legacy"
	}
	return "unknown"
}

// BuildResults is a decoded `xcresulttool get build-results` document. A
// document can carry both layouts; each list prefers the flat entries and
// falls back to the legacy ones when the flat list is empty.
type BuildResults struct {
	Shape ResultShape

	flatErrors, flatWarnings     []Issue
	legacyErrors, legacyWarnings []Issue
}

func (b *BuildResults) Errors() []Issue {
	if len(b.flatErrors) > 0 {
		return b.flatErrors
	}
	return b.legacyErrors
}

func (b *BuildResults) Warnings() []Issue {
	if len(b.flatWarnings) > 0 {
		return b.flatWarnings
	}
	return b.legacyWarnings
}

type flatIssue struct {
	Message   *string `json:"message"`
	IssueType *string `json:"issueType"`
	SourceURL string  `json:"sourceURL"`
}

type legacyValue struct {
	Value json.RawMessage `json:"_value"`
}

func (v legacyValue) String() (string, bool) {
	if len(v.Value) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s, true
	}
	return strings.TrimSpace(string(v.Value)), true
}

func (v legacyValue) Int() *int {
	s, ok := v.String()
	if !ok {
		return nil
	}
	return atoiPtr(s)
}

type legacyIssue struct {
	Message   *legacyValue `json:"message"`
	IssueType *legacyValue `json:"issueType"`
	Location  *struct {
		URL                  legacyValue `json:"url"`
		StartingLineNumber   legacyValue `json:"startingLineNumber"`
		StartingColumnNumber legacyValue `json:"startingColumnNumber"`
	} `json:"documentLocationInCreatingWorkspace"`
}

type legacyDoc struct {
	Actions struct {
		Values []struct {
			BuildResult struct {
				Issues struct {
					ErrorSummaries struct {
						Values []legacyIssue `json:"_values"`
					} `json:"errorSummaries"`
					WarningSummaries struct {
						Values []legacyIssue `json:"_values"`
					} `json:"warningSummaries"`
				} `json:"issues"`
			} `json:"buildResult"`
		} `json:"_values"`
	} `json:"actions"`
}

// DecodeBuildResults classifies and decodes a build-results document.
// Sections that do not match the expected types are ignored. Errors and
// warnings each fall back from the flat list to the legacy list on their own,
// so a count always equals the length of the list it describes.
func DecodeBuildResults(data []byte) (*BuildResults, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode build results: %w", err)
	}
	res := &BuildResults{}

	flatList := func(key, fallbackType string) ([]Issue, bool) {
		raw, ok := top[key]
		if !ok {
			return nil, false
		}
		var items []flatIssue
		if err := json.Unmarshal(raw, &items); err != nil || items == nil {
			return nil, false
		}
		out := make([]Issue, 0, len(items))
		for _, it := range items {
			out = append(out, Issue{
				Message:  derefOr(it.Message, "Unknown "+fallbackType),
				Type:     derefOr(it.IssueType, fallbackType),
				Location: LocationFromSourceURL(it.SourceURL),
			})
		}
		return out, true
	}
	var hasErr, hasWarn bool
	res.flatErrors, hasErr = flatList("errors", IssueError)
	res.flatWarnings, hasWarn = flatList("warnings", IssueWarning)
	if hasErr || hasWarn {
		res.Shape = ShapeFlat
	}

	if _, ok := top["actions"]; ok {
		var legacy legacyDoc
		if err := json.Unmarshal(data, &legacy); err == nil && len(legacy.Actions.Values) > 0 {
			issues := legacy.Actions.Values[0].BuildResult.Issues
			res.legacyErrors = legacyIssues(issues.ErrorSummaries.Values, IssueError)
			res.legacyWarnings = legacyIssues(issues.WarningSummaries.Values, IssueWarning)
			if res.Shape == ShapeUnknown {
				res.Shape = ShapeLegacy
			}
		}
	}
	return res, nil
}

func legacyIssues(items []legacyIssue, fallbackType string) []Issue {
	out := make([]Issue, 0, len(items))
	for _, it := range items {
		iss := Issue{Message: "Unknown " + fallbackType, Type: fallbackType}
		if it.Message != nil {
			if s, ok := it.Message.String(); ok {
				iss.Message = s
			}
		}
		if it.IssueType != nil {
			if s, ok := it.IssueType.String(); ok {
				iss.Type = s
			}
		}
		if loc := it.Location; loc != nil {
			if s, ok := loc.URL.String(); ok {
				iss.Location.File = &s
			}
			iss.Location.Line = loc.StartingLineNumber.Int()
			iss.Location.Column = loc.StartingColumnNumber.Int()
		}
		out = append(out, iss)
	}
	return out
}

// LocationFromSourceURL parses file:///p/F.swift#StartingLineNumber=N&...
// The fragment numbers are zero-based; the result is one-based.
func LocationFromSourceURL(sourceURL string) Location {
	loc := Location{}
	if sourceURL == "" {
		return loc
	}
	filePart, fragment, hasFragment := strings.Cut(sourceURL, "#")
	file := strings.ReplaceAll(filePart, "file://", "")
	loc.File = &file
	if !hasFragment {
		return loc
	}
	params := map[string]string{}
	for _, p := range strings.Split(fragment, "&") {
		if k, v, ok := strings.Cut(p, "="); ok {
			params[k] = v
		}
	}
	if v, ok := params["StartingLineNumber"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return loc
		}
		n++
		loc.Line = &n
	}
	if v, ok := params["StartingColumnNumber"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return loc
		}
		n++
		loc.Column = &n
	}
	return loc
}

// TestSummary is the subset of `xcresulttool get test-results summary` the
// reports use.
type TestSummary struct {
	Result           string        `json:"result,omitempty"`
	Total            int           `json:"total"`
	Passed           int           `json:"passed"`
	Failed           int           `json:"failed"`
	Skipped          int           `json:"skipped"`
	ExpectedFailures int           `json:"expected_failures"`
	Duration         float64       `json:"duration"`
	Failures         []TestFailure `json:"failures,omitempty"`
}

type TestFailure struct {
	TestName   string `json:"test_name"`
	Target     string `json:"target,omitempty"`
	FailureMsg string `json:"failure_text"`
}

type testResultsSummaryJSON struct {
	Result           string   `json:"result"`
	TotalTestCount   int      `json:"totalTestCount"`
	PassedTests      int      `json:"passedTests"`
	FailedTests      int      `json:"failedTests"`
	SkippedTests     int      `json:"skippedTests"`
	ExpectedFailures int      `json:"expectedFailures"`
	StartTime        *float64 `json:"startTime"`
	FinishTime       *float64 `json:"finishTime"`
	TestFailures     []struct {
		TestName    string `json:"testName"`
		TargetName  string `json:"targetName"`
		FailureText string `json:"failureText"`
	} `json:"testFailures"`
}

// ParserOptions configures an XCResultParser. Zero values run real tools and
// drop diagnostics.
type ParserOptions struct {
	Runner CommandRunner
	Emit   Emitter
}

// XCResultParser extracts issues, logs and test results from one bundle.
// An empty path is allowed; then only the stderr fallback yields issues.
type XCResultParser struct {
	Path   string
	Stderr string

	runner CommandRunner
	emit   Emitter

	buildLoaded bool
	build       *BuildResults
}

func NewXCResultParser(path, stderr string, opts ParserOptions) (*XCResultParser, error) {
	if path != "" && !util.Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, path)
	}
	return &XCResultParser{Path: path, Stderr: stderr, runner: opts.Runner, emit: opts.Emit}, nil
}

func (p *XCResultParser) xcresulttool(ctx context.Context, args ...string) (string, bool) {
	if p.Path == "" {
		return "", false
	}
	argv := append([]string{"xcresulttool"}, args...)
	argv = append(argv, "--path", p.Path)
	out, err := Capture(ctx, p.runner, CmdSpec{Path: "xcrun", Args: argv})
	if err != nil {
		detail := strings.TrimSpace(out.Stderr)
		if detail == "" {
			detail = err.Error()
		}
		emitMaybe(p.emit, Warn("xcresult", fmt.Sprintf("Error running xcresulttool %s: %s", strings.Join(args, " "), detail)))
		return "", false
	}
	return out.Stdout, true
}

func (p *XCResultParser) xcresulttoolJSON(ctx context.Context, v any, args ...string) bool {
	out, ok := p.xcresulttool(ctx, args...)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		emitMaybe(p.emit, Warn("xcresult", fmt.Sprintf("Error parsing JSON from xcresulttool: %v", err)))
		return false
	}
	return true
}

// BuildResults returns the decoded build results, or nil when unavailable.
// The first call's outcome is reused by every later call.
func (p *XCResultParser) BuildResults(ctx context.Context) *BuildResults {
	if p.buildLoaded {
		return p.build
	}
	p.buildLoaded = true
	out, ok := p.xcresulttool(ctx, "get", "build-results")
	if !ok {
		return nil
	}
	res, err := DecodeBuildResults([]byte(out))
	if err != nil {
		emitMaybe(p.emit, Warn("xcresult", fmt.Sprintf("Error parsing JSON from xcresulttool: %v", err)))
		return nil
	}
	p.build = res
	return res
}

// TestResults returns the raw test-results summary document, or nil.
func (p *XCResultParser) TestResults(ctx context.Context) map[string]any {
	var doc map[string]any
	if !p.xcresulttoolJSON(ctx, &doc, "get", "test-results", "summary") {
		return nil
	}
	return doc
}

// TestSummary returns nil when the bundle has no test results.
func (p *XCResultParser) TestSummary(ctx context.Context) *TestSummary {
	var doc testResultsSummaryJSON
	if !p.xcresulttoolJSON(ctx, &doc, "get", "test-results", "summary") {
		return nil
	}
	s := &TestSummary{
		Result:           doc.Result,
		Total:            doc.TotalTestCount,
		Passed:           doc.PassedTests,
		Failed:           doc.FailedTests,
		Skipped:          doc.SkippedTests,
		ExpectedFailures: doc.ExpectedFailures,
	}
	if doc.StartTime != nil && doc.FinishTime != nil && *doc.FinishTime >= *doc.StartTime {
		s.Duration = math.Round((*doc.FinishTime-*doc.StartTime)*1000) / 1000
	}
	for _, f := range doc.TestFailures {
		s.Failures = append(s.Failures, TestFailure{TestName: f.TestName, Target: f.TargetName, FailureMsg: f.FailureText})
	}
	return s
}

// BuildLog returns "" when no log is available.
func (p *XCResultParser) BuildLog(ctx context.Context) string {
	out, ok := p.xcresulttool(ctx, "get", "log", "--type", "build")
	if !ok {
		return ""
	}
	return out
}

// CountIssues counts errors and warnings from the structured results and
// falls back to stderr for errors when the bundle reports none.
func (p *XCResultParser) CountIssues(ctx context.Context) (errCount, warnCount int) {
	if res := p.BuildResults(ctx); res != nil {
		errCount = len(res.Errors())
		warnCount = len(res.Warnings())
	}
	if errCount == 0 && p.Stderr != "" {
		errCount = len(ParseStderrErrors(p.Stderr))
	}
	return errCount, warnCount
}

// Errors lists structured errors, or stderr-derived ones when there are none.
func (p *XCResultParser) Errors(ctx context.Context) []Issue {
	if res := p.BuildResults(ctx); res != nil {
		if errs := res.Errors(); len(errs) > 0 {
			return errs
		}
	}
	if p.Stderr != "" {
		return ParseStderrErrors(p.Stderr)
	}
	return []Issue{}
}

// Warnings has no stderr fallback.
func (p *XCResultParser) Warnings(ctx context.Context) []Issue {
	if res := p.BuildResults(ctx); res != nil {
		if w := res.Warnings(); len(w) > 0 {
			return w
		}
	}
	return []Issue{}
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
