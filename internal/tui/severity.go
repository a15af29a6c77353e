package tui

import (
	"regexp"
	"strings"
)

// Severity classifies one streamed xcodebuild output line.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityError
	SeverityWarning
	SeverityNote
)

var compilerErrorRE = regexp.MustCompile(`(?i)^[^:\s].*:\d+(?::\d+)?:\s*(fatal error|error):`)

var fatalMarkers = []string{
	"fatal error",
	"clang: error",
	"swift-frontend: error",
	"ld: error",
	"linker command failed",
	"xcodebuild: error",
	"** build failed **",
	"** test failed **",
	"codesign error",
	"error: no profiles",
	"error: unable to find a destination",
	"undefined symbols",
	"no such module",
}

// ClassifyLine decides how a streamed line is highlighted and counted.
// A bare "error:" line without a file location or a known fatal marker is
// treated as a warning, since xcodebuild prints many recoverable ones.
func ClassifyLine(line string) Severity {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "warning:") || strings.Contains(line, "⚠"):
		return SeverityWarning
	case strings.Contains(lower, "note:") || strings.Contains(lower, "remark:"):
		return SeverityNote
	}
	for _, m := range fatalMarkers {
		if strings.Contains(lower, m) {
			return SeverityError
		}
	}
	if !strings.Contains(lower, "error:") && !strings.Contains(line, "❌") {
		return SeverityNormal
	}
	if compilerErrorRE.MatchString(line) {
		return SeverityError
	}
	return SeverityWarning
}
