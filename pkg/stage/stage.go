package stage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// DefaultScanLimit bounds a single wait/ directory scan
const DefaultScanLimit = 1000

// Stager owns the three staging directories and the moves between them.
// It is the only component that touches the filesystem layout; callers deal
// in file names (wait/, run/) or absolute paths (buggy/, delete).
type Stager struct {
	waitDir  string
	runDir   string
	buggyDir string
}

// New creates a Stager and ensures all three directories exist
func New(waitDir, runDir, buggyDir string) (*Stager, error) {
	s := &Stager{
		waitDir:  waitDir,
		runDir:   runDir,
		buggyDir: buggyDir,
	}
	for _, dir := range []string{waitDir, runDir, buggyDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// WaitPath returns the absolute path of a file name in wait/
func (s *Stager) WaitPath(name string) string {
	return filepath.Join(s.waitDir, name)
}

// RunPath returns the absolute path of a file name in run/
func (s *Stager) RunPath(name string) string {
	return filepath.Join(s.runDir, name)
}

// BuggyPath returns the absolute path of a file name in buggy/
func (s *Stager) BuggyPath(name string) string {
	return filepath.Join(s.buggyDir, name)
}

// ListPending returns up to limit .json file names currently in wait/,
// sorted by name. Dot-prefixed temp files and other extensions are skipped.
func (s *Stager) ListPending(limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	entries, err := os.ReadDir(s.waitDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan wait dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if filepath.Ext(name) != ".json" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// MoveToRun moves a wait/ file into run/ and returns its new path
func (s *Stager) MoveToRun(name string) (string, error) {
	dest := s.RunPath(name)
	if err := move(s.WaitPath(name), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// MoveToBuggy moves a file (by full path) into buggy/. An existing
// destination of the same name is overwritten; content is addressed by
// mail_id ledger-side, so the last writer wins.
func (s *Stager) MoveToBuggy(path string) error {
	return move(path, s.BuggyPath(filepath.Base(path)))
}

// MoveRunToWait returns a run/ file back to wait/
func (s *Stager) MoveRunToWait(name string) error {
	return move(s.RunPath(name), s.WaitPath(name))
}

// RecoverRun moves every .json file left in run/ back to wait/ and returns
// how many were recovered. Called once at startup; the mere presence of a
// file in run/ marks it as pending from a previous interrupted run.
func (s *Stager) RecoverRun() (int, error) {
	entries, err := os.ReadDir(s.runDir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan run dir: %w", err)
	}

	recovered := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := s.MoveRunToWait(e.Name()); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

// Delete removes a file. A missing file is not an error.
func (s *Stager) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// move renames src to dst, falling back to copy+delete across filesystems
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
