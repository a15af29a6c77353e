package report

import (
	"fmt"
	"strings"

	"github.com/vburojevic/xcpipe/internal/core"
)

// BundleList renders the cached result bundles, newest first.
func BundleList(bundles []core.BundleInfo) string {
	if len(bundles) == 0 {
		return "No xcresult bundles found"
	}
	lines := []string{fmt.Sprintf("Recent XCResult bundles (%d):", len(bundles)), ""}
	for _, b := range bundles {
		lines = append(lines,
			"  "+b.ID,
			"    Created: "+b.Created.Format("2006-01-02T15:04:05"),
			fmt.Sprintf("    Size: %g MB", b.SizeMB),
		)
		if b.FormatVersion != "" {
			lines = append(lines, "    Format: "+b.FormatVersion)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// Details is everything known about one bundle.
type Details struct {
	ID           string       `json:"xcresult_id"`
	ErrorCount   int          `json:"error_count"`
	WarningCount int          `json:"warning_count"`
	Errors       []core.Issue `json:"errors"`
	Warnings     []core.Issue `json:"warnings"`
	LogPreview   *string      `json:"log_preview"`

	log string
}

const logPreviewChars = 1000

func NewDetails(id string, errCount, warnCount int, errors, warnings []core.Issue, log string) Details {
	if errors == nil {
		errors = []core.Issue{}
	}
	if warnings == nil {
		warnings = []core.Issue{}
	}
	d := Details{ID: id, ErrorCount: errCount, WarningCount: warnCount, Errors: errors, Warnings: warnings, log: log}
	if log != "" {
		preview := truncateRunes(log, logPreviewChars)
		d.LogPreview = &preview
	}
	return d
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Text renders the details with at most 10 issues per list and the last 30
// log lines.
func (d Details) Text() string {
	lines := []string{
		"XCResult: " + d.ID,
		fmt.Sprintf("Errors: %d, Warnings: %d", d.ErrorCount, d.WarningCount),
		"",
	}
	if len(d.Errors) > 0 {
		lines = append(lines, Errors(d.Errors, 10), "")
	}
	if len(d.Warnings) > 0 {
		lines = append(lines, Warnings(d.Warnings, 10), "")
	}
	if d.log != "" {
		lines = append(lines, "Build Log (last 30 lines):", Log(d.log, 30))
	}
	return strings.Join(lines, "\n")
}

// Device renders one simulator as "✓ ● iPhone 16 Pro (iOS 18.1) [ABCD1234...]".
func Device(s core.Simulator) string {
	state := " "
	if s.Booted() {
		state = "✓"
	}
	avail := "○"
	if s.Available {
		avail = "●"
	}
	udid := s.UDID
	if len(udid) > 8 {
		udid = udid[:8]
	}
	return fmt.Sprintf("%s %s %s (%s) [%s...]", state, avail, s.Name, s.RuntimeName, udid)
}

// SimulatorSummary renders the compact simulators listing.
func SimulatorSummary(s core.SimulatorSummary) string {
	lines := []string{
		fmt.Sprintf("Simulator Summary [%s]", s.CacheID),
		fmt.Sprintf("├─ Total: %d devices", s.Total),
		fmt.Sprintf("├─ Available: %d", s.Available),
		fmt.Sprintf("└─ Booted: %d", s.BootedCount),
	}
	if len(s.Booted) > 0 {
		lines = append(lines, "")
		for _, d := range s.Booted {
			lines = append(lines, "  "+Device(d))
		}
	}
	if s.CacheID != "" {
		lines = append(lines, "", fmt.Sprintf("Use --get %s for full list", s.CacheID))
	}
	return strings.Join(lines, "\n")
}

// DeviceList renders simulators under header, one per line.
func DeviceList(header string, sims []core.Simulator, numbered bool) string {
	lines := []string{header, ""}
	for i, d := range sims {
		if numbered {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, Device(d)))
		} else {
			lines = append(lines, "  "+Device(d))
		}
	}
	return strings.Join(lines, "\n")
}

// CacheEntries renders progressive cache entries.
func CacheEntries(entries []core.CacheEntryInfo) string {
	if len(entries) == 0 {
		return "No cache entries"
	}
	lines := []string{fmt.Sprintf("Cache entries (%d):", len(entries)), ""}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("  %s  %s  %ds old", e.ID, e.Type, e.AgeSeconds))
	}
	return strings.Join(lines, "\n")
}
