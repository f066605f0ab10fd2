package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const backupSuffix = ".oct.bak"

var (
	statFile   = os.Stat
	renameFile = os.Rename
	removeFile = os.Remove
)

// WriteFileSafely writes data next to path and swaps it into place, so an
// interrupted write never leaves a truncated config or inventory behind.
func WriteFileSafely(path string, data []byte, perm os.FileMode) error {
	target := strings.TrimSpace(path)
	if target == "" {
		return fmt.Errorf("target path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", target, err)
	}

	temp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", target, err)
	}
	tempPath := temp.Name()
	cleanup := func() { _ = removeFile(tempPath) }

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tempPath, err)
	}
	if err := temp.Chmod(perm); err != nil {
		_ = temp.Close()
		cleanup()
		return fmt.Errorf("chmod %s: %w", tempPath, err)
	}
	if err := temp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tempPath, err)
	}

	if err := ReplaceFileSafely(tempPath, target); err != nil {
		cleanup()
		return err
	}
	return nil
}

// ReplaceFileSafely moves tempPath over targetPath. The previous target is
// kept as a backup until the rename succeeds and restored if it fails.
func ReplaceFileSafely(tempPath string, targetPath string) error {
	temp := strings.TrimSpace(tempPath)
	target := strings.TrimSpace(targetPath)
	if temp == "" {
		return fmt.Errorf("replacement temp path is empty")
	}
	if target == "" {
		return fmt.Errorf("replacement target path is empty")
	}
	if temp == target {
		return fmt.Errorf("replacement temp and target paths must differ")
	}

	tempInfo, err := statFile(temp)
	if err != nil {
		return fmt.Errorf("stat replacement temp %q: %w", temp, err)
	}
	if tempInfo.IsDir() {
		return fmt.Errorf("replacement temp path is a directory: %s", temp)
	}

	backup := target + backupSuffix
	if _, err := statFile(backup); err == nil {
		if removeErr := removeFile(backup); removeErr != nil {
			return fmt.Errorf("remove stale backup %q: %w", backup, removeErr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat backup %q: %w", backup, err)
	}

	hadTarget := false
	if info, err := statFile(target); err == nil {
		if info.IsDir() {
			return fmt.Errorf("replacement target is a directory: %s", target)
		}
		hadTarget = true
		if err := renameFile(target, backup); err != nil {
			return fmt.Errorf("move existing %s to backup: %w", target, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat replacement target %q: %w", target, err)
	}

	if err := renameFile(temp, target); err != nil {
		if hadTarget {
			if rollbackErr := renameFile(backup, target); rollbackErr != nil {
				return fmt.Errorf("replace failed (%v) and rollback failed (%w)", err, rollbackErr)
			}
		}
		return fmt.Errorf("replace %s: %w", target, err)
	}

	if hadTarget {
		if err := removeFile(backup); err != nil {
			return fmt.Errorf("cleanup backup %q: %w", backup, err)
		}
	}
	return nil
}
