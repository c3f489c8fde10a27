package yaml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// QuarantineDir is where unreadable files are moved, under the data directory.
const QuarantineDir = "quarantine"

// Recovery describes what Recover did.
type Recovery struct {
	QuarantinedTo string
	// FromBackup is true when the previous version was restored; otherwise
	// the skeleton was written.
	FromBackup bool
}

// Quarantine moves path into dir/quarantine and returns its new location.
func Quarantine(dir, path string) (string, error) {
	qdir := filepath.Join(dir, QuarantineDir)
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s.corrupt", filepath.Base(path), time.Now().Format("20060102T150405.000"))
	dst := filepath.Join(qdir, name)
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return dst, nil
}

// RestoreFromBackup copies path+BackupSuffix over path when the backup parses.
func RestoreFromBackup(path string) error {
	content, err := os.ReadFile(path + BackupSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no backup for %s", path)
		}
		return fmt.Errorf("read backup: %w", err)
	}
	if err := validateYAML(content); err != nil {
		return fmt.Errorf("backup is also corrupted: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	return nil
}

// Recover quarantines the unreadable file at path, then restores its backup
// or, failing that, writes skeleton in its place.
func Recover(dir, path string, skeleton any) (Recovery, error) {
	moved, err := Quarantine(dir, path)
	if err != nil {
		return Recovery{}, fmt.Errorf("quarantine failed: %w", err)
	}
	rec := Recovery{QuarantinedTo: moved}

	if err := RestoreFromBackup(path); err == nil {
		rec.FromBackup = true
		return rec, nil
	}

	if err := AtomicWrite(path, skeleton); err != nil {
		return rec, fmt.Errorf("write skeleton: %w", err)
	}
	return rec, nil
}
