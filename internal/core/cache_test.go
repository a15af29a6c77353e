package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"howett.net/plist"
)

func newTestCache(t *testing.T) *XCResultCache {
	t.Helper()
	c, err := NewXCResultCache(filepath.Join(t.TempDir(), "xcresults"))
	if err != nil {
		t.Fatalf("NewXCResultCache: %v", err)
	}
	return c
}

func makeBundle(t *testing.T, dir, name string, size int, mtime time.Time) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Join(p, "Data"), 0o755); err != nil {
		t.Fatalf("mkdir bundle: %v", err)
	}
	if err := os.WriteFile(filepath.Join(p, "Data", "blob"), make([]byte, size), 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	return p
}

func TestGenerateIDSameSecondCollides(t *testing.T) {
	c := newTestCache(t)
	fixed := time.Date(2025, 10, 18, 14, 30, 52, 0, time.Local)
	c.now = func() time.Time { return fixed }

	a := c.GenerateID("xcresult")
	b := c.GenerateID("xcresult")
	if a != b {
		t.Fatalf("expected same-second ids to collide: %q vs %q", a, b)
	}
	if a != "xcresult-20251018-143052" {
		t.Fatalf("GenerateID = %q", a)
	}
	if got := c.GenerateID(""); got != a {
		t.Fatalf("empty prefix should default to xcresult, got %q", got)
	}
}

func TestNewIDAvoidsExistingBundles(t *testing.T) {
	c := newTestCache(t)
	fixed := time.Date(2025, 10, 18, 14, 30, 52, 0, time.Local)
	c.now = func() time.Time { return fixed }

	first := c.NewID("xcresult")
	makeBundle(t, c.Dir, first+BundleSuffix, 1, time.Time{})
	second := c.NewID("xcresult")
	if second != first+"-2" {
		t.Fatalf("NewID = %q, want %q", second, first+"-2")
	}
	if err := c.SaveStderr(second, "boom"); err != nil {
		t.Fatalf("SaveStderr: %v", err)
	}
	if third := c.NewID("xcresult"); third != first+"-3" {
		t.Fatalf("NewID = %q, want %q", third, first+"-3")
	}
}

func TestGetPathAcceptsSuffix(t *testing.T) {
	c := newTestCache(t)
	want := filepath.Join(c.Dir, "xcresult-1.xcresult")
	if got := c.GetPath("xcresult-1"); got != want {
		t.Fatalf("GetPath = %q", got)
	}
	if got := c.GetPath("xcresult-1.xcresult"); got != want {
		t.Fatalf("GetPath with suffix = %q", got)
	}
}

func TestSaveCopiesAndOverwrites(t *testing.T) {
	c := newTestCache(t)
	src := makeBundle(t, t.TempDir(), "Build.xcresult", 2048, time.Time{})

	id, err := c.Save(src, "xcresult-a")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "xcresult-a" || !c.Exists(id) {
		t.Fatalf("bundle not stored: %q", id)
	}

	stale := filepath.Join(c.GetPath(id), "stale")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	if _, err := c.Save(src, "xcresult-a.xcresult"); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("overwrite should replace the existing bundle")
	}

	if _, err := c.Save(filepath.Join(t.TempDir(), "missing.xcresult"), ""); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestListSortsNewestFirstAndLimits(t *testing.T) {
	c := newTestCache(t)
	base := time.Now().Add(-time.Hour)
	makeBundle(t, c.Dir, "xcresult-old.xcresult", 1024*1024, base)
	makeBundle(t, c.Dir, "xcresult-new.xcresult", 10, base.Add(2*time.Minute))
	makeBundle(t, c.Dir, "xcresult-mid.xcresult", 10, base.Add(time.Minute))
	if err := os.WriteFile(filepath.Join(c.Dir, "xcresult-new.stderr"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stderr: %v", err)
	}

	all, err := c.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 bundles, got %d", len(all))
	}
	if all[0].ID != "xcresult-new" || all[1].ID != "xcresult-mid" || all[2].ID != "xcresult-old" {
		t.Fatalf("unexpected order: %v %v %v", all[0].ID, all[1].ID, all[2].ID)
	}
	if all[2].SizeMB != 1.0 {
		t.Fatalf("SizeMB = %v, want 1.0", all[2].SizeMB)
	}

	top, err := c.List(2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("limit not applied: %d", len(top))
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	c := &XCResultCache{Dir: filepath.Join(t.TempDir(), "nope")}
	got, err := c.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestListReadsFormatVersionFromInfoPlist(t *testing.T) {
	c := newTestCache(t)
	p := makeBundle(t, c.Dir, "xcresult-p.xcresult", 1, time.Time{})
	b, err := plist.Marshal(map[string]any{
		"dateCreated": time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC),
		"version":     map[string]any{"major": 3, "minor": 53},
		"rootId":      map[string]any{"hash": "0~abc"},
	}, plist.XMLFormat)
	if err != nil {
		t.Fatalf("marshal plist: %v", err)
	}
	if err := os.WriteFile(filepath.Join(p, "Info.plist"), b, 0o644); err != nil {
		t.Fatalf("write plist: %v", err)
	}

	meta, err := ReadResultBundleMeta(p)
	if err != nil {
		t.Fatalf("ReadResultBundleMeta: %v", err)
	}
	if meta.RootID != "0~abc" || meta.DateCreated.Year() != 2025 {
		t.Fatalf("unexpected meta %+v", meta)
	}

	list, err := c.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].FormatVersion != "3.53" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestCleanupKeepsNewestAndRemovesSidecars(t *testing.T) {
	c := newTestCache(t)
	base := time.Now().Add(-time.Hour)
	ids := []string{"xcresult-1", "xcresult-2", "xcresult-3", "xcresult-4", "xcresult-5"}
	for i, id := range ids {
		makeBundle(t, c.Dir, id+BundleSuffix, 10, base.Add(time.Duration(i)*time.Minute))
		if err := c.SaveStderr(id, "stderr "+id); err != nil {
			t.Fatalf("SaveStderr: %v", err)
		}
	}

	removed, err := c.Cleanup(2)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	for _, id := range ids[:3] {
		if c.Exists(id) {
			t.Fatalf("%s should be removed", id)
		}
		if c.Stderr(id) != "" {
			t.Fatalf("%s stderr should be removed", id)
		}
	}
	for _, id := range ids[3:] {
		if !c.Exists(id) {
			t.Fatalf("%s should be kept", id)
		}
		if c.Stderr(id) != "stderr "+id {
			t.Fatalf("%s stderr should be kept", id)
		}
	}

	if removed, _ := c.Cleanup(2); removed != 0 {
		t.Fatalf("second cleanup removed %d", removed)
	}
}

func TestStderrSidecar(t *testing.T) {
	c := newTestCache(t)
	if got := c.Stderr("xcresult-x"); got != "" {
		t.Fatalf("missing stderr should be empty, got %q", got)
	}
	if err := c.SaveStderr("xcresult-x", ""); err != nil {
		t.Fatalf("SaveStderr empty: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.Dir, "xcresult-x.stderr")); !os.IsNotExist(err) {
		t.Fatalf("empty stderr should not create a file")
	}
	if err := c.SaveStderr("xcresult-x", "error: boom\n"); err != nil {
		t.Fatalf("SaveStderr: %v", err)
	}
	if got := c.Stderr("xcresult-x.xcresult"); got != "error: boom\n" {
		t.Fatalf("Stderr = %q", got)
	}
}

func TestSizeMBUnknownIsZero(t *testing.T) {
	c := newTestCache(t)
	if got := c.SizeMB("nope"); got != 0 {
		t.Fatalf("SizeMB = %v", got)
	}
}
