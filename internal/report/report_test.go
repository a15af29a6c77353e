package report

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/xcpipe/internal/core"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestMinimalBuild(t *testing.T) {
	out := Minimal(StatusFailed, 3, 1, "xcresult-20251018-143052", nil, nil)
	assert.Equal(t, "Build: FAILED (3 errors, 1 warnings) [xcresult-20251018-143052]", out)
	for _, want := range []string{"FAILED", "3 errors", "1 warnings", "xcresult-20251018-143052"} {
		assert.Contains(t, out, want)
	}
}

func TestMinimalHintsOnlyOnFailure(t *testing.T) {
	hints := []string{"Code signing issue detected:"}

	failed := Minimal(StatusFailed, 1, 0, "id", nil, hints)
	assert.Equal(t, "Build: FAILED (1 errors, 0 warnings) [id]\n\nCode signing issue detected:", failed)

	ok := Minimal(StatusSuccess, 0, 0, "id", nil, hints)
	assert.NotContains(t, ok, "Code signing")
}

func TestMinimalTests(t *testing.T) {
	out := Minimal(StatusSuccess, 0, 0, "xcresult-1", &core.TestSummary{Total: 12, Passed: 12, Duration: 4.24}, nil)
	assert.Equal(t, "Tests: PASS (12/12 passed, 4.2s) [xcresult-1]", out)

	out = Minimal(StatusFailed, 0, 0, "xcresult-1", &core.TestSummary{Total: 12, Passed: 11, Failed: 1, Duration: 4.25}, nil)
	assert.True(t, strings.HasPrefix(out, "Tests: FAIL (11/12 passed"), out)
}

func TestErrorsFormatting(t *testing.T) {
	assert.Equal(t, "No errors found.", Errors(nil, 10))
	assert.Equal(t, "No warnings found.", Warnings(nil, 10))

	issues := []core.Issue{
		{Message: "Cannot find 'foo' in scope", Location: core.Location{File: strPtr("file:///p/A.swift"), Line: intPtr(12)}},
		{Message: "Linker failed"},
		{Message: "third", Location: core.Location{Line: intPtr(4)}},
	}
	out := Errors(issues, 2)
	want := strings.Join([]string{
		"Errors (3):",
		"",
		"1. Cannot find 'foo' in scope",
		"   Location: /p/A.swift:line 12",
		"",
		"2. Linker failed",
		"   Location: unknown location",
		"",
		"... and 1 more errors",
	}, "\n")
	assert.Equal(t, want, out)

	w := Warnings(issues[2:], 10)
	assert.Contains(t, w, "Warnings (1):")
	assert.Contains(t, w, "   Location: line 4")
	assert.NotContains(t, w, "more warnings")
}

func TestLogTruncation(t *testing.T) {
	assert.Equal(t, "No build log available.", Log("", 50))

	short := "a\nb\nc\n"
	assert.Equal(t, short, Log(short, 3))

	var b strings.Builder
	for i := 1; i <= 100; i++ {
		b.WriteString("line ")
		b.WriteString(strings.Repeat("x", i%3))
		b.WriteString("\n")
	}
	out := Log(b.String(), 10)
	require.True(t, strings.HasPrefix(out, "... (showing last 10 lines of 100)\n\n"), out)
	assert.Len(t, strings.Split(strings.TrimPrefix(out, "... (showing last 10 lines of 100)\n\n"), "\n"), 10)
}

func TestHintsProvisioningExcludesSigning(t *testing.T) {
	hints := Hints([]core.Issue{{Message: "Provisioning profile error: x", Type: core.IssueProvisioning}})
	require.NotEmpty(t, hints)
	assert.Equal(t, "Provisioning profile issue detected:", hints[0])
	assert.Len(t, hints, 4)
	for _, h := range hints {
		assert.NotContains(t, h, "Code signing issue detected")
	}
}

func TestHintsOrderAndDestination(t *testing.T) {
	hints := Hints([]core.Issue{
		{Message: "Code signing error: x", Type: core.IssueSigning},
		{Message: "No profiles", Type: core.IssueProvisioning},
	})
	require.Len(t, hints, 8)
	assert.Equal(t, "Provisioning profile issue detected:", hints[0])
	assert.Equal(t, "Code signing issue detected:", hints[4])

	dest := Hints([]core.Issue{{Message: "Unable to find a Destination matching", Type: core.IssueBuild}})
	require.Len(t, dest, 3)
	assert.Equal(t, "Device selection issue detected:", dest[0])

	assert.Empty(t, Hints(nil))
	assert.Empty(t, Hints([]core.Issue{{Message: "bad destination", Type: core.IssueCompilation}}))
}

func TestVerbose(t *testing.T) {
	out := Verbose(StatusFailed, 1, 0, "xcresult-1", []core.Issue{{Message: "boom"}}, nil, nil)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Build: FAILED", lines[0])
	assert.Equal(t, "XCResult: xcresult-1", lines[1])
	assert.Contains(t, out, "1. boom")
	assert.True(t, strings.HasSuffix(out, "Summary: 1 errors, 0 warnings"))

	tests := Verbose(StatusSuccess, 0, 0, "xcresult-2", nil, nil, &core.TestSummary{Total: 3, Passed: 3, Duration: 1.0})
	assert.Contains(t, tests, "Tests: PASS\n  Total: 3\n  Passed: 3\n  Failed: 0\n  Duration: 1.0s")
}

func TestBundleListAndDetails(t *testing.T) {
	assert.Equal(t, "No xcresult bundles found", BundleList(nil))

	created := time.Date(2025, 10, 18, 14, 30, 52, 0, time.Local)
	out := BundleList([]core.BundleInfo{{ID: "xcresult-1", Created: created, SizeMB: 1.25}})
	assert.Contains(t, out, "Recent XCResult bundles (1):")
	assert.Contains(t, out, "  xcresult-1\n    Created: 2025-10-18T14:30:52\n    Size: 1.25 MB")

	log := strings.Repeat("a", 1500)
	d := NewDetails("xcresult-1", 1, 0, []core.Issue{{Message: "boom"}}, nil, log)
	require.NotNil(t, d.LogPreview)
	assert.Len(t, *d.LogPreview, 1000)

	wide := NewDetails("xcresult-1", 0, 0, nil, nil, strings.Repeat("é", 1500))
	require.NotNil(t, wide.LogPreview)
	assert.True(t, utf8.ValidString(*wide.LogPreview))
	assert.Equal(t, 1000, utf8.RuneCountInString(*wide.LogPreview))
	text := d.Text()
	assert.Contains(t, text, "Errors: 1, Warnings: 0")
	assert.Contains(t, text, "Build Log (last 30 lines):")

	empty := NewDetails("xcresult-2", 0, 0, nil, nil, "")
	assert.Nil(t, empty.LogPreview)
	assert.Contains(t, JSON(empty), `"log_preview": null`)
}

func TestSimulatorRendering(t *testing.T) {
	sim := core.Simulator{Name: "iPhone 16 Pro", UDID: "ABCDEFGH-1234", State: "Booted", RuntimeName: "iOS 18.1", Available: true}
	assert.Equal(t, "✓ ● iPhone 16 Pro (iOS 18.1) [ABCDEFGH...]", Device(sim))

	out := SimulatorSummary(core.SimulatorSummary{CacheID: "simulator-1", Total: 2, Available: 2, BootedCount: 1, Booted: []core.Simulator{sim}})
	assert.Contains(t, out, "Simulator Summary [simulator-1]")
	assert.Contains(t, out, "└─ Booted: 1")
	assert.Contains(t, out, "Use --get simulator-1 for full list")
}
