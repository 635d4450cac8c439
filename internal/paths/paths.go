// Package paths resolves the fixed directory bundle a LIFT run operates
// over, computed once from a root directory and the configured PUT name.
package paths

import (
	"fmt"
	"path/filepath"
)

// Paths is the resolved bundle of absolute directories for one run.
// Constructed once at startup; the Project subtree is created by setup
// and mutated throughout the run, while Archive is append-only except
// for the LPS slot. Config is the project/config subdirectory holding
// the generated pytest_html_report.yml, distinct from the .env file
// under Inputs.
type Paths struct {
	Root    string
	Config  string
	Inputs  string
	Archive string

	ConversationArchive string

	Project string
	PUT     string
	Tests   string
	Reports string
}

// Resolve computes the full Paths bundle from root and the configured
// PUT directory name.
func Resolve(root, putName string) Paths {
	inputs := filepath.Join(root, "input")
	archive := filepath.Join(root, ".archive")
	project := filepath.Join(root, "project")

	return Paths{
		Root:                root,
		Config:              filepath.Join(project, "config"),
		Inputs:              inputs,
		Archive:             archive,
		ConversationArchive: filepath.Join(archive, "conversations"),
		Project:             project,
		PUT:                 filepath.Join(project, putName),
		Tests:               filepath.Join(project, "tests"),
		Reports:             filepath.Join(project, "reports"),
	}
}

// ExecutionReport is the absolute path to the junit-style execution
// report the test runner is asked to produce.
func (p Paths) ExecutionReport() string {
	return filepath.Join(p.Reports, "execution-report.xml")
}

// CoverageReport is the absolute path to the cobertura-style coverage
// report the test runner is asked to produce.
func (p Paths) CoverageReport() string {
	return filepath.Join(p.Reports, "coverage-report.xml")
}

// ArchiveFSS is the absolute path to the First Sufficient Suite snapshot.
func (p Paths) ArchiveFSS() string {
	return filepath.Join(p.Archive, "_FSS_")
}

// ArchiveLPS is the absolute path to the Last Passing Suite snapshot.
func (p Paths) ArchiveLPS() string {
	return filepath.Join(p.Archive, "_LPS_")
}

// TestsArchive is the absolute path a given iteration's zipped tests
// directory is written to.
func (p Paths) TestsArchive(iteration int) string {
	return filepath.Join(p.Archive, zipName("tests", iteration))
}

// ReportsArchive is the absolute path a given iteration's zipped
// reports directory is written to.
func (p Paths) ReportsArchive(iteration int) string {
	return filepath.Join(p.Archive, zipName("reports", iteration))
}

func zipName(prefix string, iteration int) string {
	return fmt.Sprintf("%s_%02d.zip", prefix, iteration)
}
