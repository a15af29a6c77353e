// Package settings holds tool-level options: cache locations, retention and
// output defaults. Values come from defaults, then an optional settings file
// under ~/.xcpipe, then XCPIPE_* environment variables, then command flags.
package settings

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vburojevic/xcpipe/internal/core"
)

const (
	KeyCacheDir            = "cache_dir"
	KeyProgressiveCacheDir = "progressive_cache_dir"
	KeyCacheMaxAge         = "cache_max_age"
	KeyKeepRecent          = "keep_recent"
	KeySkillName           = "skill_name"
	KeyLogLines            = "log_lines"
	KeyProjectDir          = "project_dir"
)

const (
	DefaultKeepRecent  = 20
	DefaultCacheMaxAge = time.Hour
	DefaultLogLines    = 50

	EnvPrefix = "XCPIPE"
)

// Settings is the resolved option set.
type Settings struct {
	CacheDir            string
	ProgressiveCacheDir string
	CacheMaxAge         time.Duration
	KeepRecent          int
	SkillName           string
	LogLines            int
	ProjectDir          string

	// File is the settings file that was read, if any.
	File string
}

// Loader resolves Settings. The zero value reads from the user's home
// directory; tests point Dir somewhere else.
type Loader struct {
	// Dir overrides ~/.xcpipe.
	Dir string

	v *viper.Viper
}

func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

func (l *Loader) viper() *viper.Viper {
	if l.v == nil {
		l.v = viper.New()
	}
	return l.v
}

// Load applies every source in order and bind flags (if non-nil) last.
func (l *Loader) Load(flags *pflag.FlagSet) (*Settings, error) {
	l.setDefaults()
	file, err := l.readFile()
	if err != nil {
		return nil, err
	}
	l.bindEnv()
	l.bindFlags(flags)

	v := l.viper()
	s := &Settings{
		CacheDir:            v.GetString(KeyCacheDir),
		ProgressiveCacheDir: v.GetString(KeyProgressiveCacheDir),
		CacheMaxAge:         v.GetDuration(KeyCacheMaxAge),
		KeepRecent:          v.GetInt(KeyKeepRecent),
		SkillName:           v.GetString(KeySkillName),
		LogLines:            v.GetInt(KeyLogLines),
		ProjectDir:          v.GetString(KeyProjectDir),
		File:                file,
	}
	s.normalize()
	return s, nil
}

func (l *Loader) setDefaults() {
	v := l.viper()
	v.SetDefault(KeyCacheDir, core.DefaultXCResultDir())
	v.SetDefault(KeyProgressiveCacheDir, core.DefaultProgressiveDir())
	v.SetDefault(KeyCacheMaxAge, DefaultCacheMaxAge)
	v.SetDefault(KeyKeepRecent, DefaultKeepRecent)
	v.SetDefault(KeySkillName, "")
	v.SetDefault(KeyLogLines, DefaultLogLines)
	v.SetDefault(KeyProjectDir, "")
}

func (l *Loader) dir() string {
	if l.Dir != "" {
		return l.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".xcpipe")
}

// readFile reads the first settings.<ext> found. A file that exists but
// cannot be parsed is an error.
func (l *Loader) readFile() (string, error) {
	dir := l.dir()
	if dir == "" {
		return "", nil
	}
	for _, ext := range []string{"yaml", "yml", "json", "toml"} {
		path := filepath.Join(dir, "settings."+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		l.viper().SetConfigFile(path)
		if err := l.viper().ReadInConfig(); err != nil {
			return path, err
		}
		return path, nil
	}
	return "", nil
}

func (l *Loader) bindEnv() {
	v := l.viper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

var flagKeys = map[string]string{
	"cache-dir":   KeyCacheDir,
	"project-dir": KeyProjectDir,
	"skill-name":  KeySkillName,
	"keep":        KeyKeepRecent,
	"lines":       KeyLogLines,
}

// bindFlags binds only flags the user actually set, so an unset flag's zero
// default never shadows the file or environment.
func (l *Loader) bindFlags(flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil && f.Changed {
			_ = l.viper().BindPFlag(key, f)
		}
	}
}

func (s *Settings) normalize() {
	s.CacheDir = expandHome(s.CacheDir)
	s.ProgressiveCacheDir = expandHome(s.ProgressiveCacheDir)
	s.ProjectDir = expandHome(s.ProjectDir)
	if s.CacheMaxAge <= 0 {
		s.CacheMaxAge = DefaultCacheMaxAge
	}
	// Zero is a valid keep count: cleanup then removes every bundle.
	if s.KeepRecent < 0 {
		s.KeepRecent = DefaultKeepRecent
	}
	if s.LogLines <= 0 {
		s.LogLines = DefaultLogLines
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// ResolveSkillName prefers the configured name, then the skills/<name>
// segment of the running executable's path.
func (s *Settings) ResolveSkillName() string {
	if s.SkillName != "" {
		return s.SkillName
	}
	exe, err := os.Executable()
	if err != nil {
		return core.DefaultSkillName
	}
	return core.SkillNameFromExecutable(exe)
}
