package core

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type SimDevice struct {
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
	Name        string `json:"name"`
	UDID        string `json:"udid"`
	// Some versions use availability string instead.
	Availability string `json:"availability"`
}

type SimRuntime struct {
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	Version     string `json:"version"`
	IsAvailable bool   `json:"isAvailable"`
}

type simctlListJSON struct {
	Devices  map[string][]SimDevice `json:"devices"`
	Runtimes []SimRuntime           `json:"runtimes"`
}

type Simulator struct {
	Name        string `json:"name"`
	UDID        string `json:"udid"`
	State       string `json:"state"`
	RuntimeName string `json:"runtime"`
	RuntimeID   string `json:"runtime_id"`
	OSVersion   string `json:"os_version,omitempty"`
	Available   bool   `json:"is_available"`
}

func (s Simulator) Booted() bool { return s.State == "Booted" }

// DeviceLister answers "which simulator names can be used as a destination".
type DeviceLister interface {
	AvailableDevices(ctx context.Context) ([]string, error)
}

// SimctlDeviceLister reads `xcrun simctl list devices available iOS`.
type SimctlDeviceLister struct {
	Runner CommandRunner
}

func (l SimctlDeviceLister) AvailableDevices(ctx context.Context) ([]string, error) {
	out, err := Capture(ctx, l.Runner, CmdSpec{
		Path: "xcrun",
		Args: []string{"simctl", "list", "devices", "available", "iOS"},
	})
	if err != nil {
		return nil, fmt.Errorf("simctl list devices: %w", err)
	}
	return ParseDeviceLines(out.Stdout), nil
}

// ParseDeviceLines keeps the device lines of simctl's text listing, e.g.
// "    iPhone 16 Pro (UDID) (Shutdown)". Section headers have no parenthesis.
func ParseDeviceLines(out string) []string {
	lines := []string{}
	for _, ln := range strings.Split(out, "\n") {
		ln = strings.TrimSpace(ln)
		if strings.HasPrefix(ln, "--") || !strings.Contains(ln, "(") {
			continue
		}
		lines = append(lines, ln)
	}
	return lines
}

// DeviceName returns the text before the first "(" of a device line.
func DeviceName(line string) string {
	name, _, _ := strings.Cut(line, "(")
	return strings.TrimSpace(name)
}

// SimulatorInstalled matches by substring, so "iPhone 16" is satisfied by an
// "iPhone 16 Pro" line.
func SimulatorInstalled(lines []string, name string) bool {
	for _, ln := range lines {
		if strings.Contains(ln, name) && strings.Contains(ln, "(") {
			return true
		}
	}
	return false
}

// FirstIPhone returns the name of the first listed iPhone or "".
func FirstIPhone(lines []string) string {
	for _, ln := range lines {
		if strings.Contains(ln, "iPhone") && strings.Contains(ln, "(") {
			if name := DeviceName(ln); name != "" {
				return name
			}
		}
	}
	return ""
}

func SimctlList(ctx context.Context, r CommandRunner, emit Emitter) (simctlListJSON, error) {
	out, err := Capture(ctx, r, CmdSpec{
		Path: "xcrun",
		Args: []string{"simctl", "list", "--json"},
		StderrLine: func(s string) {
			emitMaybe(emit, Log("simulators", s))
		},
	})
	if err != nil {
		return simctlListJSON{}, err
	}
	var parsed simctlListJSON
	if err := json.Unmarshal([]byte(out.Stdout), &parsed); err != nil {
		return simctlListJSON{}, fmt.Errorf("parse simctl list: %w", err)
	}
	return parsed, nil
}

var runtimeIDRE = regexp.MustCompile(`SimRuntime\.([A-Za-z]+)-([0-9-]+)$`)

// runtimeNameFromID turns com.apple.CoreSimulator.SimRuntime.iOS-18-1 into
// "iOS 18.1".
func runtimeNameFromID(id string) string {
	m := runtimeIDRE.FindStringSubmatch(id)
	if m == nil {
		return id
	}
	return m[1] + " " + strings.ReplaceAll(m[2], "-", ".")
}

func FlattenSimulators(list simctlListJSON) []Simulator {
	runtimeName := map[string]string{}
	runtimeVersion := map[string]string{}
	for _, rt := range list.Runtimes {
		runtimeName[rt.Identifier] = rt.Name
		runtimeVersion[rt.Identifier] = rt.Version
	}

	out := []Simulator{}
	for runtimeID, devs := range list.Devices {
		name := runtimeName[runtimeID]
		if name == "" {
			name = runtimeNameFromID(runtimeID)
		}
		for _, d := range devs {
			avail := d.IsAvailable
			a := strings.ToLower(d.Availability)
			if !avail && strings.Contains(a, "available") && !strings.Contains(a, "unavailable") {
				avail = true
			}
			out = append(out, Simulator{
				Name:        d.Name,
				UDID:        d.UDID,
				State:       d.State,
				RuntimeName: name,
				RuntimeID:   runtimeID,
				OSVersion:   runtimeVersion[runtimeID],
				Available:   avail,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RuntimeName == out[j].RuntimeName {
			return out[i].Name < out[j].Name
		}
		return out[i].RuntimeName < out[j].RuntimeName
	})
	return out
}

// SimulatorSummary is the compact view printed by the simulators command;
// the full device list lives in the progressive cache under CacheID.
type SimulatorSummary struct {
	CacheID           string      `json:"cache_id"`
	Total             int         `json:"total_devices"`
	Available         int         `json:"available_devices"`
	BootedCount       int         `json:"booted_devices"`
	Booted            []Simulator `json:"booted"`
	RecommendedIPhone []Simulator `json:"recommended_iphone"`
}

// SimulatorCacheType is the progressive cache type of full device listings.
const SimulatorCacheType = "simulator-list"

type simulatorCachePayload struct {
	Devices []Simulator `json:"devices"`
}

// SummarizeSimulators stores sims in cache and returns the summary. A nil
// cache produces a summary without an id.
func SummarizeSimulators(sims []Simulator, cache *ProgressiveCache) (SimulatorSummary, error) {
	s := SimulatorSummary{Total: len(sims), Booted: []Simulator{}, RecommendedIPhone: []Simulator{}}
	for _, d := range sims {
		if d.Booted() {
			s.BootedCount++
			if len(s.Booted) < 3 {
				s.Booted = append(s.Booted, d)
			}
		}
		if d.Available {
			s.Available++
			if strings.Contains(d.Name, "iPhone") && len(s.RecommendedIPhone) < 3 {
				s.RecommendedIPhone = append(s.RecommendedIPhone, d)
			}
		}
	}
	if cache != nil {
		id, err := cache.Save(simulatorCachePayload{Devices: sims}, SimulatorCacheType)
		if err != nil {
			return s, err
		}
		s.CacheID = id
	}
	return s, nil
}

// CachedSimulators loads a listing saved by SummarizeSimulators, keeping the
// devices whose name contains deviceType and whose runtime contains runtime
// (case-insensitive). Empty filters match everything.
func CachedSimulators(cache *ProgressiveCache, id, deviceType, runtime string) ([]Simulator, bool) {
	raw, ok := cache.Get(id)
	if !ok {
		return nil, false
	}
	var payload simulatorCachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	return FilterSimulators(payload.Devices, deviceType, runtime), true
}

func FilterSimulators(sims []Simulator, deviceType, runtime string) []Simulator {
	out := []Simulator{}
	for _, d := range sims {
		if deviceType != "" && !strings.Contains(d.Name, deviceType) {
			continue
		}
		if runtime != "" && !strings.Contains(strings.ToLower(d.RuntimeName), strings.ToLower(runtime)) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SuggestSimulators ranks booted, then available, then the newest runtimes,
// then iPhones, and returns the top limit.
func SuggestSimulators(sims []Simulator, limit int) []Simulator {
	type scored struct {
		sim   Simulator
		score int
	}
	newest := 0
	for _, d := range sims {
		newest = max(newest, runtimeMajor(d.RuntimeName))
	}
	all := make([]scored, 0, len(sims))
	for _, d := range sims {
		score := 0
		if d.Booted() {
			score += 10
		}
		if d.Available {
			score += 5
		}
		if major := runtimeMajor(d.RuntimeName); major > 0 {
			score += max(0, 3-(newest-major))
		}
		if strings.Contains(d.Name, "iPhone") {
			score++
		}
		all = append(all, scored{d, score})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]Simulator, 0, len(all))
	for _, s := range all {
		out = append(out, s.sim)
	}
	return out
}

var runtimeMajorRE = regexp.MustCompile(`\d+`)

func runtimeMajor(name string) int {
	n, _ := strconv.Atoi(runtimeMajorRE.FindString(name))
	return n
}
