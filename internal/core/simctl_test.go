package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

const simctlDevicesText = `== Devices ==
-- iOS 18.1 --
    iPad Air 11-inch (M2) (11111111-1111-1111-1111-111111111111) (Shutdown)
    iPhone 16 Pro (22222222-2222-2222-2222-222222222222) (Booted)
    iPhone 15 (33333333-3333-3333-3333-333333333333) (Shutdown)
`

func TestSimctlDeviceLister(t *testing.T) {
	r := (&fakeRunner{}).on("simctl list devices available iOS", fakeResponse{Stdout: simctlDevicesText})
	lines, err := SimctlDeviceLister{Runner: r}.AvailableDevices(context.Background())
	if err != nil {
		t.Fatalf("AvailableDevices: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 device lines, got %v", lines)
	}
	if got := FirstIPhone(lines); got != "iPhone 16 Pro" {
		t.Fatalf("FirstIPhone = %q", got)
	}
	if !SimulatorInstalled(lines, "iPhone 15") {
		t.Fatalf("iPhone 15 should be installed")
	}
	if !SimulatorInstalled(lines, "iPhone 16") {
		t.Fatalf("substring match should find iPhone 16")
	}
	if SimulatorInstalled(lines, "iPhone SE") {
		t.Fatalf("iPhone SE should not be installed")
	}
}

func TestFirstIPhoneNone(t *testing.T) {
	if got := FirstIPhone(ParseDeviceLines("-- iOS 18.1 --\n    iPad Pro (X) (Shutdown)\n")); got != "" {
		t.Fatalf("FirstIPhone = %q", got)
	}
}

const simctlJSON = `{
  "devices": {
    "com.apple.CoreSimulator.SimRuntime.iOS-18-1": [
      {"name": "iPhone 16 Pro", "udid": "A", "state": "Booted", "isAvailable": true},
      {"name": "iPad Air", "udid": "B", "state": "Shutdown", "isAvailable": true}
    ],
    "com.apple.CoreSimulator.SimRuntime.iOS-17-5": [
      {"name": "iPhone 15", "udid": "C", "state": "Shutdown", "isAvailable": false, "availability": "(unavailable, runtime profile not found)"}
    ]
  },
  "runtimes": [
    {"name": "iOS 18.1", "identifier": "com.apple.CoreSimulator.SimRuntime.iOS-18-1", "version": "18.1", "isAvailable": true}
  ]
}`

func TestFlattenSimulatorsAndSummary(t *testing.T) {
	r := (&fakeRunner{}).on("simctl list --json", fakeResponse{Stdout: simctlJSON})
	list, err := SimctlList(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("SimctlList: %v", err)
	}
	sims := FlattenSimulators(list)
	if len(sims) != 3 {
		t.Fatalf("expected 3 simulators, got %d", len(sims))
	}
	// iOS 17.5 sorts first; its runtime name comes from the identifier.
	if sims[0].RuntimeName != "iOS 17.5" || sims[0].Available {
		t.Fatalf("unexpected first simulator %+v", sims[0])
	}

	cache, err := NewProgressiveCache(filepath.Join(t.TempDir(), "cache"), time.Hour)
	if err != nil {
		t.Fatalf("NewProgressiveCache: %v", err)
	}
	summary, err := SummarizeSimulators(sims, cache)
	if err != nil {
		t.Fatalf("SummarizeSimulators: %v", err)
	}
	if summary.Total != 3 || summary.Available != 2 || summary.BootedCount != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.RecommendedIPhone) != 1 || summary.RecommendedIPhone[0].Name != "iPhone 16 Pro" {
		t.Fatalf("unexpected recommendations %+v", summary.RecommendedIPhone)
	}

	iphones, ok := CachedSimulators(cache, summary.CacheID, "iPhone", "")
	if !ok || len(iphones) != 2 {
		t.Fatalf("CachedSimulators iPhone = %v, %v", iphones, ok)
	}
	ios17, ok := CachedSimulators(cache, summary.CacheID, "", "ios 17")
	if !ok || len(ios17) != 1 || ios17[0].UDID != "C" {
		t.Fatalf("CachedSimulators runtime = %v, %v", ios17, ok)
	}
	if _, ok := CachedSimulators(cache, "simulator-missing", "", ""); ok {
		t.Fatalf("missing cache id should not be found")
	}
}

func TestSuggestSimulatorsPrefersBootedNewest(t *testing.T) {
	sims := []Simulator{
		{Name: "iPad Air", RuntimeName: "iOS 18.1", Available: true},
		{Name: "iPhone 15", RuntimeName: "iOS 17.5", Available: true},
		{Name: "iPhone 16 Pro", RuntimeName: "iOS 18.1", Available: true, State: "Booted"},
		{Name: "iPhone 16", RuntimeName: "iOS 18.1", Available: true},
	}
	got := SuggestSimulators(sims, 2)
	if len(got) != 2 || got[0].Name != "iPhone 16 Pro" || got[1].Name != "iPhone 16" {
		t.Fatalf("SuggestSimulators = %+v", got)
	}
}
