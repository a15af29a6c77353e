package core

import (
	"regexp"
	"sort"
	"strings"
)

// Issue types produced by stderr parsing. Structured results may carry any
// other issueType string verbatim.
const (
	IssueBuild        = "build"
	IssueCompilation  = "compilation"
	IssueProvisioning = "provisioning"
	IssueSigning      = "signing"
	IssueError        = "error"
	IssueWarning      = "warning"
)

// stderrStrategy turns matches of one pattern into issues. Strategies run in
// order; onlyIfEmpty strategies run only when nothing matched before them.
type stderrStrategy struct {
	name        string
	re          *regexp.Regexp
	onlyIfEmpty bool
	build       func(m []string) Issue
}

func plainIssue(typ, msg string) Issue {
	return Issue{Message: msg, Type: typ}
}

var stderrStrategies = []stderrStrategy{
	{
		name: "compiler",
		re:   regexp.MustCompile(`(?m)^([^:\n]+):(\d+):(\d+):[ \t]*error:[ \t]*(.+?)$`),
		build: func(m []string) Issue {
			file := m[1]
			return Issue{
				Message:  strings.TrimSpace(m[4]),
				Type:     IssueCompilation,
				Location: Location{File: &file, Line: atoiPtr(m[2]), Column: atoiPtr(m[3])},
			}
		},
	},
	{
		name: "xcodebuild",
		re:   regexp.MustCompile(`(?s)xcodebuild:\s*error:\s*(.*?)(?:\n\n|\z)`),
		build: func(m []string) Issue {
			parts := []string{}
			for _, ln := range strings.Split(strings.TrimSpace(m[1]), "\n") {
				if ln = strings.TrimSpace(ln); ln != "" {
					parts = append(parts, ln)
				}
			}
			return plainIssue(IssueBuild, strings.Join(parts, " "))
		},
	},
	{
		name: "provisioning",
		re:   regexp.MustCompile(`(?i)error:.*?provisioning profile.*?(?:doesn't|does not|cannot).*?(.*?)(?:\n|$)`),
		build: func(m []string) Issue {
			return plainIssue(IssueProvisioning, "Provisioning profile error: "+strings.TrimSpace(m[1]))
		},
	},
	{
		name: "signing",
		re:   regexp.MustCompile(`(?i)error:.*?(?:code sign|signing).*?(.*?)(?:\n|$)`),
		build: func(m []string) Issue {
			return plainIssue(IssueSigning, "Code signing error: "+strings.TrimSpace(m[1]))
		},
	},
	{
		name:        "generic",
		re:          regexp.MustCompile(`(?m)^(?:\*\*\s)?(?:error|❌):[ \t]*(.*?)$`),
		onlyIfEmpty: true,
		build: func(m []string) Issue {
			return plainIssue(IssueBuild, strings.TrimSpace(m[1]))
		},
	},
	{
		name: "no-profiles",
		re:   regexp.MustCompile(`No profiles for '(.*?)' were found`),
		build: func(m []string) Issue {
			return plainIssue(IssueProvisioning, "No provisioning profile found for bundle ID '"+m[1]+"'")
		},
	},
}

// issueSpecificity orders classifications when two strategies report the
// same stderr line.
func issueSpecificity(typ string) int {
	switch typ {
	case IssueProvisioning, IssueSigning:
		return 3
	case IssueCompilation:
		return 2
	case IssueBuild:
		return 1
	}
	return 0
}

type lineIssue struct {
	line  int
	order int
	issue Issue
}

// ParseStderrErrors extracts errors from raw xcodebuild stderr. At most one
// issue is kept per stderr line; when strategies overlap the most specific
// classification wins and ties keep the earlier strategy.
func ParseStderrErrors(stderr string) []Issue {
	if stderr == "" {
		return []Issue{}
	}
	lineStarts := lineOffsets(stderr)

	byLine := map[int]*lineIssue{}
	order := 0
	for _, s := range stderrStrategies {
		if s.onlyIfEmpty && len(byLine) > 0 {
			continue
		}
		for _, loc := range s.re.FindAllStringSubmatchIndex(stderr, -1) {
			m := submatches(stderr, loc)
			iss := s.build(m)
			line := lineAt(lineStarts, loc[0])
			order++
			cur, ok := byLine[line]
			if !ok {
				byLine[line] = &lineIssue{line: line, order: order, issue: iss}
				continue
			}
			if issueSpecificity(iss.Type) > issueSpecificity(cur.issue.Type) {
				cur.issue = iss
			}
		}
	}

	kept := make([]*lineIssue, 0, len(byLine))
	for _, li := range byLine {
		kept = append(kept, li)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].order < kept[j].order })
	out := make([]Issue, 0, len(kept))
	for _, li := range kept {
		out = append(out, li.issue)
	}
	return out
}

func submatches(s string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

func lineOffsets(s string) []int {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func lineAt(starts []int, off int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
}
