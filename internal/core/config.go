package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vburojevic/xcpipe/internal/util"
)

// DefaultSkillName is used when the executable is not installed under a
// .../skills/<name>/ directory.
const DefaultSkillName = "ios-simulator-skill"

type DeviceConfig struct {
	PreferredSimulator  *string `json:"preferred_simulator"`
	PreferredOSVersion  *string `json:"preferred_os_version"`
	FallbackToAnyIPhone bool    `json:"fallback_to_any_iphone"`
	LastUsedSimulator   *string `json:"last_used_simulator"`
	LastUsedAt          *string `json:"last_used_at"`
}

type ConfigData struct {
	Device DeviceConfig `json:"device"`
}

func DefaultConfigData() ConfigData {
	return ConfigData{Device: DeviceConfig{FallbackToAnyIPhone: true}}
}

// Config is the per-project device preference file. It is loaded once,
// mutated in memory and written back explicitly with Save.
type Config struct {
	Data ConfigData
	Path string

	now func() time.Time
}

func ConfigPath(projectDir, skillName string) string {
	if skillName == "" {
		skillName = DefaultSkillName
	}
	return filepath.Join(projectDir, ".claude", "skills", skillName, "config.json")
}

// SkillNameFromExecutable derives the skill directory name from where the
// binary is installed, e.g. /p/.claude/skills/my-sim/bin/xcpipe -> my-sim.
func SkillNameFromExecutable(exe string) string {
	if exe == "" {
		return DefaultSkillName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	parts := strings.Split(filepath.ToSlash(filepath.Clean(exe)), "/")
	for i := len(parts) - 2; i > 0; i-- {
		if parts[i-1] == "skills" && parts[i] != "" {
			return parts[i]
		}
	}
	return DefaultSkillName
}

// LoadConfig never fails: a missing file yields defaults (not written until
// Save), and an unreadable or malformed file yields defaults plus a warning.
func LoadConfig(projectDir, skillName string, emit Emitter) *Config {
	if projectDir == "" {
		if wd, err := os.Getwd(); err == nil {
			projectDir = wd
		}
	}
	cfg := &Config{Data: DefaultConfigData(), Path: ConfigPath(projectDir, skillName), now: time.Now}

	b, err := os.ReadFile(cfg.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			emitMaybe(emit, Warn("config", fmt.Sprintf("Could not load config %s: %v", cfg.Path, err)))
		}
		return cfg
	}
	// Decoding over the defaults keeps fields that older files lack.
	merged := DefaultConfigData()
	if err := json.Unmarshal(b, &merged); err != nil {
		emitMaybe(emit, Warn("config", fmt.Sprintf("Invalid JSON in %s: %v; using default config", cfg.Path, err)))
		return cfg
	}
	cfg.Data = merged
	return cfg
}

func (c *Config) Save() error {
	if err := util.WriteJSONFileAtomic(c.Path, c.Data, 0o644); err != nil {
		return fmt.Errorf("save config %s: %w", c.Path, err)
	}
	return nil
}

// PreferredSimulator returns the explicit preference, else the learned one,
// else "".
func (c *Config) PreferredSimulator() string {
	d := c.Data.Device
	if d.PreferredSimulator != nil && *d.PreferredSimulator != "" {
		return *d.PreferredSimulator
	}
	if d.LastUsedSimulator != nil && *d.LastUsedSimulator != "" {
		return *d.LastUsedSimulator
	}
	return ""
}

func (c *Config) FallbackToAnyIPhone() bool {
	return c.Data.Device.FallbackToAnyIPhone
}

// UpdateLastUsedSimulator changes memory only; call Save to persist.
func (c *Config) UpdateLastUsedSimulator(name string) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	ts := now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
	c.Data.Device.LastUsedSimulator = &name
	c.Data.Device.LastUsedAt = &ts
}

// SetPreferredSimulator sets or, with "", clears the explicit preference.
func (c *Config) SetPreferredSimulator(name string) {
	if name == "" {
		c.Data.Device.PreferredSimulator = nil
		return
	}
	c.Data.Device.PreferredSimulator = &name
}
