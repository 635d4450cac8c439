package auditlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftdev/lift/internal/logging"
	"github.com/liftdev/lift/internal/reports"
)

func TestFileLogger_WritesOneJSONObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	var buf bytes.Buffer
	logger, err := NewFileLogger(path, logging.NewWithWriters(&buf, &buf, slog.LevelInfo))
	require.NoError(t, err)

	logger.Log(Entry{Event: IterationStart, Iteration: 0, GenState: "INIT"})
	unit := 3
	linesCovered := 42
	logger.Log(Entry{
		Event:     TestsExecuted,
		Iteration: 0,
		GenState:  "INIT",
		Execution: &reports.ExecutionSummary{Tests: unit},
		Coverage:  &reports.CoverageSummary{LinesCovered: &linesCovered},
	})
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, IterationStart, first.Event)
	assert.Equal(t, "INIT", first.GenState)

	var second Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, TestsExecuted, second.Event)
	require.NotNil(t, second.Execution)
	assert.Equal(t, 3, second.Execution.Tests)
	require.NotNil(t, second.Coverage)
	require.NotNil(t, second.Coverage.LinesCovered)
	assert.Equal(t, 42, *second.Coverage.LinesCovered)
}

func TestFileLogger_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l1, err := NewFileLogger(path, logging.New(slog.LevelInfo))
	require.NoError(t, err)
	l1.Log(Entry{Event: IterationStart})
	require.NoError(t, l1.Close())

	l2, err := NewFileLogger(path, logging.New(slog.LevelInfo))
	require.NoError(t, err)
	l2.Log(Entry{Event: IterationEnd})
	require.NoError(t, l2.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Count(raw, []byte("\n"))
	assert.Equal(t, 2, lines)
}

func TestNoopLogger_DiscardsSilently(t *testing.T) {
	var l NoopLogger
	l.Log(Entry{Event: IterationStart})
	assert.NoError(t, l.Close())
}
