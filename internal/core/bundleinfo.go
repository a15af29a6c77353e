package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"howett.net/plist"
)

// ResultBundleMeta is what an .xcresult bundle says about itself in its
// top-level Info.plist.
type ResultBundleMeta struct {
	DateCreated   time.Time
	FormatVersion string
	RootID        string
}

func ReadResultBundleMeta(bundlePath string) (ResultBundleMeta, error) {
	b, err := os.ReadFile(filepath.Join(bundlePath, "Info.plist"))
	if err != nil {
		return ResultBundleMeta{}, fmt.Errorf("read Info.plist: %w", err)
	}
	var m map[string]any
	if _, err := plist.Unmarshal(b, &m); err != nil {
		return ResultBundleMeta{}, fmt.Errorf("parse Info.plist: %w", err)
	}

	meta := ResultBundleMeta{}
	if t, ok := m["dateCreated"].(time.Time); ok {
		meta.DateCreated = t
	}
	if v, ok := m["version"].(map[string]any); ok {
		major, hasMajor := plistInt(v["major"])
		minor, _ := plistInt(v["minor"])
		if hasMajor {
			meta.FormatVersion = fmt.Sprintf("%d.%d", major, minor)
		}
	}
	if r, ok := m["rootId"].(map[string]any); ok {
		if h, ok := r["hash"].(string); ok {
			meta.RootID = h
		}
	}
	return meta, nil
}

func plistInt(v any) (int64, bool) {
	switch n := v.(type) {
	case uint64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
