package persistence

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalFS is the one concrete Destination driver shipped with the core,
// storing backups under <root>/cachify/backups/ (spec.md §6 "Backup file
// naming"). Object-store drivers (S3 and similar) are out of scope for the
// core; they implement the same Destination interface externally.
type LocalFS struct {
	root string
}

// NewLocalFS creates a destination rooted at root.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) dir() string {
	return filepath.Join(l.root, "cachify", "backups")
}

func (l *LocalFS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := validateBackupName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.dir(), 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(l.dir(), name))
}

func (l *LocalFS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateBackupName(name); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(l.dir(), name))
}

func (l *LocalFS) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// validateBackupName enforces spec.md §6's rejection rules: empty, ".",
// "..", path separators, control characters, or the substring "..".
func validateBackupName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("persistence: invalid backup name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("persistence: invalid backup name %q", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("persistence: invalid backup name %q", name)
		}
	}
	return nil
}
