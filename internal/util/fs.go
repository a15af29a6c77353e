package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up from start until it finds a directory that looks
// like an Xcode project root. Falls back to start.
func FindProjectRoot(start string) (string, error) {
	start, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	cur := start
	for {
		if looksLikeRoot(cur) {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return start, nil
		}
		cur = parent
	}
}

func looksLikeRoot(dir string) bool {
	if Exists(filepath.Join(dir, ".claude", "skills")) {
		return true
	}
	if Exists(filepath.Join(dir, ".git")) {
		return true
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".xcworkspace") || strings.HasSuffix(name, ".xcodeproj") {
			return true
		}
	}
	return false
}

// ListFilesWithSuffix returns directories in dir whose name ends in suffix.
// Xcode projects and workspaces are directories, so plain files are skipped.
func ListFilesWithSuffix(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func RemoveAllIfExists(path string) error {
	if !Exists(path) {
		return nil
	}
	return os.RemoveAll(path)
}

// DirSize sums the sizes of regular files under root. Unreadable entries are
// skipped.
func DirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// CopyDir replaces dst with a copy of the directory tree at src.
func CopyDir(src, dst string) error {
	if err := RemoveAllIfExists(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.CopyFS(dst, os.DirFS(src))
}
