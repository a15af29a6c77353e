package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestProgressive(t *testing.T) (*ProgressiveCache, *fakeClock) {
	t.Helper()
	p, err := NewProgressiveCache(filepath.Join(t.TempDir(), "cache"), time.Hour)
	if err != nil {
		t.Fatalf("NewProgressiveCache: %v", err)
	}
	clk := &fakeClock{t: time.Date(2025, 10, 28, 14, 30, 52, 0, time.UTC)}
	p.now = clk.Now
	return p, clk
}

func TestProgressiveSaveAndGet(t *testing.T) {
	p, _ := newTestProgressive(t)

	id, err := p.Save(map[string]any{"devices": []string{"iPhone 16"}}, "simulator-list")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "simulator-20251028-143052" {
		t.Fatalf("id = %q", id)
	}

	raw, ok := p.Get(id)
	if !ok {
		t.Fatalf("Get: not found")
	}
	var got struct {
		Devices []string `json:"devices"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Devices) != 1 || got.Devices[0] != "iPhone 16" {
		t.Fatalf("unexpected data %+v", got)
	}

	second, err := p.Save(map[string]any{}, "simulator-list")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if second != id+"-2" {
		t.Fatalf("same-second save should not overwrite, got %q", second)
	}
}

func TestProgressiveGetExpiredDeletes(t *testing.T) {
	p, clk := newTestProgressive(t)
	id, err := p.Save("x", "build-log")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	clk.t = clk.t.Add(2 * time.Hour)
	if _, ok := p.Get(id); ok {
		t.Fatalf("expired entry should not be returned")
	}
	if _, err := os.Stat(p.entryPath(id)); !os.IsNotExist(err) {
		t.Fatalf("expired entry should be deleted")
	}
	if _, ok := p.Get("missing-1"); ok {
		t.Fatalf("missing entry found")
	}
}

func TestProgressiveListEntriesFiltersAndAges(t *testing.T) {
	p, clk := newTestProgressive(t)
	if _, err := p.Save(1, "simulator-list"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	clk.t = clk.t.Add(time.Minute)
	if _, err := p.Save(2, "build-log"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	clk.t = clk.t.Add(30 * time.Second)

	all := p.ListEntries("")
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	sims := p.ListEntries("simulator-list")
	if len(sims) != 1 || sims[0].Type != "simulator-list" || sims[0].AgeSeconds != 90 {
		t.Fatalf("unexpected simulator entries %+v", sims)
	}

	clk.t = clk.t.Add(time.Hour)
	if got := p.ListEntries(""); len(got) != 0 {
		t.Fatalf("expired entries listed: %+v", got)
	}
}

func TestProgressiveCleanupAndClear(t *testing.T) {
	p, clk := newTestProgressive(t)
	if _, err := p.Save(1, "simulator-list"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	clk.t = clk.t.Add(50 * time.Minute)
	if _, err := p.Save(2, "simulator-list"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := p.Save(3, "build-log"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(p.Dir, "junk.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	if got := p.Cleanup(30 * time.Minute); got != 2 {
		t.Fatalf("Cleanup removed %d, want 2 (old + junk)", got)
	}
	if got := p.Clear("build-log"); got != 1 {
		t.Fatalf("Clear(build-log) = %d", got)
	}
	if got := p.Clear(""); got != 1 {
		t.Fatalf("Clear() = %d", got)
	}
}
