// Package runner declares the external test-runner contract the
// iteration engine drives each iteration, and provides a concrete
// child-process implementation over a configurable command template.
// The test runner and coverage tool themselves are out of scope; only
// the process-boundary contract is implemented here.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner executes the accumulated test suite against projectDir,
// requesting a junit execution report and cobertura coverage report be
// written under reportsDir. exitCode zero means every test passed.
type Runner interface {
	Run(ctx context.Context, projectDir, reportsDir string) (exitCode int, err error)
}

// ExecRunner shells out to a configurable command template via os/exec.
type ExecRunner struct {
	// Command and Args name the executable and its fixed leading
	// arguments; Run appends the project/rootdir/report-path flags.
	Command string
	Args    []string

	// PUTName is the importable module name coverage is collected for.
	PUTName string
}

// NewPytestRunner returns an ExecRunner invoking `python -m pytest` with
// the flags spec.md's test-runner contract names: a junit execution
// report, branch coverage for putName as cobertura XML, and no cache
// reuse.
func NewPytestRunner(putName string) *ExecRunner {
	return &ExecRunner{
		Command: "python",
		Args:    []string{"-m", "pytest"},
		PUTName: putName,
	}
}

// Run invokes the configured command against projectDir and blocks
// until it exits.
func (r *ExecRunner) Run(ctx context.Context, projectDir, reportsDir string) (int, error) {
	execReport := reportsDir + "/execution-report.xml"
	covReport := reportsDir + "/coverage-report.xml"

	args := append([]string{}, r.Args...)
	args = append(args,
		projectDir,
		fmt.Sprintf("--rootdir=%s", projectDir),
		"--cache-clear",
		"--disable-warnings",
		fmt.Sprintf("--junit-xml=%s", execReport),
		fmt.Sprintf("--cov=%s", r.PUTName),
		"--cov-branch",
		fmt.Sprintf("--cov-report=xml:%s", covReport),
	)

	cmd := exec.CommandContext(ctx, r.Command, args...)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
