// Package archivemgr persists every iteration's conversation,
// execution/coverage reports, and test suite to the run's append-only
// archive root, plus the FSS/LPS snapshot slots. All writes are confined
// under paths.Paths.Archive.
package archivemgr

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/paths"
)

// SuiteType controls archive naming and replacement policy for
// archive_suite.
type SuiteType int

const (
	FSS SuiteType = iota
	LPS
)

func (s SuiteType) String() string {
	if s == FSS {
		return "FSS"
	}
	return "LPS"
}

// Manager archives artifacts for one run, rooted at p.Archive.
type Manager struct {
	paths paths.Paths
}

// New builds a Manager over p. Callers must have already created
// p.Archive and p.ConversationArchive before the first iteration.
func New(p paths.Paths) *Manager {
	return &Manager{paths: p}
}

// jsonItem is the JSONL-serializable shape of a llm.Item.
type jsonItem struct {
	Kind         string `json:"kind"`
	Text         string `json:"text,omitempty"`
	ToolCallID   string `json:"tool_call_id,omitempty"`
	ToolName     string `json:"tool_name,omitempty"`
	ToolArgsJSON string `json:"tool_args_json,omitempty"`
}

// jsonTurn is the JSONL-serializable shape of a llm.Turn: one line per
// turn, preserving exact conversation structure for offline inspection.
type jsonTurn struct {
	Role           string     `json:"role"`
	Text           string     `json:"text,omitempty"`
	Items          []jsonItem `json:"items,omitempty"`
	ToolCallID     string     `json:"tool_call_id,omitempty"`
	ToolResultJSON string     `json:"tool_result_json,omitempty"`
}

// ArchiveAgent serializes history's message history to
// <archive>/conversations/{NN}_{agentType}.jsonl, one JSON object per
// turn. It does not attempt to serialize live client handles or
// loggers — only the message history and identifying metadata.
func (m *Manager) ArchiveAgent(history llm.History, iteration int, agentType string) error {
	name := fmt.Sprintf("%02d_%s.jsonl", iteration, strings.ToLower(agentType))
	dest := filepath.Join(m.paths.ConversationArchive, name)

	var buf strings.Builder
	for _, turn := range history.Turns {
		jt := jsonTurn{
			Role:           string(turn.Role),
			Text:           turn.Text,
			ToolCallID:     turn.ToolCallID,
			ToolResultJSON: turn.ToolResultJSON,
		}
		for _, item := range turn.Items {
			jt.Items = append(jt.Items, jsonItem{
				Kind:         string(item.Kind),
				Text:         item.Text,
				ToolCallID:   item.ToolCallID,
				ToolName:     item.ToolName,
				ToolArgsJSON: item.ToolArgsJSON,
			})
		}
		line, err := json.Marshal(jt)
		if err != nil {
			return fmt.Errorf("archivemgr: encode turn: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(dest, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("archivemgr: write %s: %w", dest, err)
	}
	return nil
}

// ArchiveTests removes any __pycache__ directories under the tests
// directory, then zips the entire tests directory to
// <archive>/tests_{NN}.zip.
func (m *Manager) ArchiveTests(iteration int) error {
	if err := removePycache(m.paths.Tests); err != nil {
		return fmt.Errorf("archivemgr: purge __pycache__: %w", err)
	}
	return zipDir(m.paths.Tests, m.paths.TestsArchive(iteration))
}

// ArchiveReports zips the reports directory to
// <archive>/reports_{NN}.zip, removing the reports directory afterward
// iff delete is true.
func (m *Manager) ArchiveReports(iteration int, delete bool) error {
	if err := zipDir(m.paths.Reports, m.paths.ReportsArchive(iteration)); err != nil {
		return err
	}
	if delete {
		if err := os.RemoveAll(m.paths.Reports); err != nil {
			return fmt.Errorf("archivemgr: remove reports dir: %w", err)
		}
	}
	return nil
}

// ArchiveSuite stages a combined snapshot (a copy of the reports
// directory, a copy of the tests directory purged of __pycache__, and
// an empty marker file {SUITE}_{iteration}) in a scratch directory
// under the archive, then moves it into place: FSS moves straight to
// <archive>/_FSS_ (written at most once per run); LPS first removes any
// existing <archive>/_LPS_, then moves the scratch directory in,
// minimizing but not eliminating the window with no LPS present.
func (m *Manager) ArchiveSuite(suiteType SuiteType, iteration int) error {
	scratch := filepath.Join(m.paths.Archive, "_scratch_"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("archivemgr: create scratch dir: %w", err)
	}

	if err := copyDir(m.paths.Reports, filepath.Join(scratch, "reports")); err != nil {
		_ = os.RemoveAll(scratch)
		return fmt.Errorf("archivemgr: stage reports: %w", err)
	}
	if err := copyDir(m.paths.Tests, filepath.Join(scratch, "tests")); err != nil {
		_ = os.RemoveAll(scratch)
		return fmt.Errorf("archivemgr: stage tests: %w", err)
	}
	if err := removePycache(filepath.Join(scratch, "tests")); err != nil {
		_ = os.RemoveAll(scratch)
		return fmt.Errorf("archivemgr: purge staged __pycache__: %w", err)
	}

	marker := fmt.Sprintf("%s_%d", suiteType, iteration)
	if err := os.WriteFile(filepath.Join(scratch, marker), nil, 0o644); err != nil {
		_ = os.RemoveAll(scratch)
		return fmt.Errorf("archivemgr: write marker: %w", err)
	}

	var dest string
	if suiteType == FSS {
		dest = m.paths.ArchiveFSS()
	} else {
		dest = m.paths.ArchiveLPS()
		if _, err := os.Stat(dest); err == nil {
			if err := os.RemoveAll(dest); err != nil {
				_ = os.RemoveAll(scratch)
				return fmt.Errorf("archivemgr: remove stale LPS: %w", err)
			}
		}
	}
	if err := os.Rename(scratch, dest); err != nil {
		_ = os.RemoveAll(scratch)
		return fmt.Errorf("archivemgr: move scratch to %s: %w", dest, err)
	}
	return nil
}

// removePycache removes every __pycache__ directory found under root.
func removePycache(root string) error {
	var toRemove []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "__pycache__" {
			toRemove = append(toRemove, p)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range toRemove {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

// zipDir writes every file under srcDir to a zip archive at destZip,
// preserving paths relative to srcDir.
func zipDir(srcDir, destZip string) error {
	out, err := os.Create(destZip)
	if err != nil {
		return fmt.Errorf("archivemgr: create %s: %w", destZip, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	err = filepath.WalkDir(srcDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(srcDir, p)
		if relErr != nil {
			return relErr
		}
		w, createErr := zw.Create(filepath.ToSlash(rel))
		if createErr != nil {
			return createErr
		}
		f, openErr := os.Open(p)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		_, copyErr := io.Copy(w, f)
		return copyErr
	})
	if err != nil {
		return fmt.Errorf("archivemgr: zip %s: %w", srcDir, err)
	}
	return nil
}

// copyDir recursively copies srcDir's contents to dstDir, which must not
// already exist.
func copyDir(srcDir, dstDir string) error {
	return filepath.WalkDir(srcDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == srcDir {
				return os.MkdirAll(dstDir, 0o755)
			}
			return err
		}
		rel, relErr := filepath.Rel(srcDir, p)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dstDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		src, openErr := os.Open(p)
		if openErr != nil {
			return openErr
		}
		defer src.Close()
		dst, createErr := os.Create(target)
		if createErr != nil {
			return createErr
		}
		defer dst.Close()
		_, copyErr := io.Copy(dst, src)
		return copyErr
	})
}
