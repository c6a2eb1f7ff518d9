// Package fileutil holds small filesystem helpers shared by the pipeline.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PreserveAttributes copies the permission bits and modification time from
// src onto dst. Applied after a successful conversion when the operator
// wants the output to inherit the source's attributes.
func PreserveAttributes(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("apply permissions: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("apply timestamps: %w", err)
	}
	return nil
}

// UniquePath returns path unchanged if nothing exists there, otherwise the
// first "name (n).ext" variant that is free.
func UniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// RemoveSource deletes a converted source file. A file that is already gone
// is not an error; someone beat us to the cleanup.
func RemoveSource(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("remove source: %w", err)
}
