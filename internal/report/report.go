// Package report renders build and test results as compact text for agents
// and humans. Every function is pure: inputs in, string out.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vburojevic/xcpipe/internal/core"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"

	DefaultIssueLimit = 10
	DefaultLogLines   = 50
)

// Status maps a success flag to SUCCESS or FAILED.
func Status(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailed
}

func testStatus(t *core.TestSummary) string {
	if t.Failed == 0 {
		return "PASS"
	}
	return "FAIL"
}

// Minimal is the one-line result, e.g.
//
//	Build: SUCCESS (0 errors, 3 warnings) [xcresult-20251018-143052]
//	Tests: PASS (12/12 passed, 4.2s) [xcresult-20251018-143052]
//
// Hints are appended after a blank line only when status is FAILED.
func Minimal(status string, errors, warnings int, id string, test *core.TestSummary, hints []string) string {
	lines := []string{}
	if test != nil {
		lines = append(lines, fmt.Sprintf("Tests: %s (%d/%d passed, %.1fs) [%s]", testStatus(test), test.Passed, test.Total, test.Duration, id))
	} else {
		lines = append(lines, fmt.Sprintf("Build: %s (%d errors, %d warnings) [%s]", status, errors, warnings, id))
	}
	if len(hints) > 0 && status == StatusFailed {
		lines = append(lines, "")
		lines = append(lines, hints...)
	}
	return strings.Join(lines, "\n")
}

// Errors lists up to limit errors with their locations.
func Errors(issues []core.Issue, limit int) string {
	return issueList("Errors", "errors", "No errors found.", issues, limit)
}

// Warnings lists up to limit warnings with their locations.
func Warnings(issues []core.Issue, limit int) string {
	return issueList("Warnings", "warnings", "No warnings found.", issues, limit)
}

func issueList(title, noun, empty string, issues []core.Issue, limit int) string {
	if len(issues) == 0 {
		return empty
	}
	if limit <= 0 {
		limit = DefaultIssueLimit
	}
	lines := []string{fmt.Sprintf("%s (%d):", title, len(issues)), ""}
	for i, iss := range issues {
		if i >= limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, iss.Message))
		lines = append(lines, "   Location: "+locationString(iss.Location))
		lines = append(lines, "")
	}
	if len(issues) > limit {
		lines = append(lines, fmt.Sprintf("... and %d more %s", len(issues)-limit, noun))
	}
	return strings.Join(lines, "\n")
}

func locationString(loc core.Location) string {
	parts := []string{}
	if loc.File != nil && *loc.File != "" {
		parts = append(parts, strings.ReplaceAll(*loc.File, "file://", ""))
	}
	if loc.Line != nil && *loc.Line != 0 {
		parts = append(parts, fmt.Sprintf("line %d", *loc.Line))
	}
	if len(parts) == 0 {
		return "unknown location"
	}
	return strings.Join(parts, ":")
}

// Log returns the whole log when it fits in lines, otherwise the last lines
// lines behind a banner.
func Log(text string, lines int) string {
	if text == "" {
		return "No build log available."
	}
	if lines <= 0 {
		lines = DefaultLogLines
	}
	all := strings.Split(strings.TrimSpace(text), "\n")
	if len(all) <= lines {
		return text
	}
	tail := all[len(all)-lines:]
	return fmt.Sprintf("... (showing last %d lines of %d)\n\n", lines, len(all)) + strings.Join(tail, "\n")
}

// Hints suggests fixes for the kinds of errors seen: provisioning, then
// signing, then destination selection.
func Hints(errors []core.Issue) []string {
	types := map[string]bool{}
	for _, e := range errors {
		t := e.Type
		if t == "" {
			t = "unknown"
		}
		types[t] = true
	}

	hints := []string{}
	if types[core.IssueProvisioning] {
		hints = append(hints,
			"Provisioning profile issue detected:",
			"  • Ensure you have a valid provisioning profile for iOS Simulator",
			`  • For simulator builds, use CODE_SIGN_IDENTITY="" CODE_SIGNING_REQUIRED=NO`,
			"  • Or specify simulator explicitly: --simulator 'iPhone 16 Pro'",
		)
	}
	if types[core.IssueSigning] {
		hints = append(hints,
			"Code signing issue detected:",
			"  • For simulator builds, code signing is not required",
			"  • Ensure build settings target iOS Simulator, not physical device",
			"  • Check destination: platform=iOS Simulator,name=<device>",
		)
	}
	if len(types) == 0 || types[core.IssueBuild] {
		for _, e := range errors {
			if strings.Contains(strings.ToLower(e.Message), "destination") {
				hints = append(hints,
					"Device selection issue detected:",
					"  • List available simulators: xcrun simctl list devices available",
					"  • Specify simulator: --simulator 'iPhone 16 Pro'",
				)
				break
			}
		}
	}
	return hints
}

// Verbose is the detailed report used by --verbose.
func Verbose(status string, errCount, warnCount int, id string, errors, warnings []core.Issue, test *core.TestSummary) string {
	lines := []string{}
	if test != nil {
		lines = append(lines,
			"Tests: "+testStatus(test),
			fmt.Sprintf("  Total: %d", test.Total),
			fmt.Sprintf("  Passed: %d", test.Passed),
			fmt.Sprintf("  Failed: %d", test.Failed),
			fmt.Sprintf("  Duration: %.1fs", test.Duration),
		)
	} else {
		lines = append(lines, "Build: "+status)
	}
	lines = append(lines, "XCResult: "+id, "")

	if len(errors) > 0 {
		lines = append(lines, Errors(errors, 5), "")
	}
	if len(warnings) > 0 {
		lines = append(lines, Warnings(warnings, 5), "")
	}
	lines = append(lines, fmt.Sprintf("Summary: %d errors, %d warnings", errCount, warnCount))
	return strings.Join(lines, "\n")
}

// JSON pretty-prints v with two-space indentation.
func JSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}
