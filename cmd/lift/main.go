// Command lift runs one iterative test-suite synthesis session against
// the project configured in input/.env.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"

	"github.com/liftdev/lift/internal/auditlog"
	"github.com/liftdev/lift/internal/config"
	"github.com/liftdev/lift/internal/engine"
	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/logging"
)

// Exit codes distinguish the failure categories a caller (CI, a human
// operator) might want to react to differently.
const (
	ExitCodeSuccess        = 0
	ExitCodeGenericError   = 1
	ExitCodeAuthError      = 2
	ExitCodeRateLimitError = 3
	ExitCodeInvalidRequest = 4
	ExitCodeServerError    = 5
	ExitCodeNetworkError   = 6
	ExitCodeConfigError    = 7
	ExitCodeCancelled      = 10
)

func main() {
	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "lift: cannot determine working directory:", err)
		os.Exit(ExitCodeGenericError)
	}

	cfg, err := config.Load(filepath.Join(root, "input", ".env"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", sanitizeErrorMessage(err.Error()))
		os.Exit(ExitCodeConfigError)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLogger, err := auditlog.NewFileLogger(filepath.Join(root, ".archive", "audit.jsonl"), logger)
	if err != nil {
		if err := os.MkdirAll(filepath.Join(root, ".archive"), 0o755); err != nil {
			fmt.Fprintln(os.Stderr, "Error: cannot create archive directory:", sanitizeErrorMessage(err.Error()))
			os.Exit(ExitCodeGenericError)
		}
		auditLogger, err = auditlog.NewFileLogger(filepath.Join(root, ".archive", "audit.jsonl"), logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: cannot open audit log:", sanitizeErrorMessage(err.Error()))
			os.Exit(ExitCodeGenericError)
		}
	}
	defer auditLogger.Close()

	eng, err := engine.New(ctx, cfg, root, logger, auditLogger)
	if err != nil {
		handleError(logger, err)
	}

	if err := eng.Run(ctx); err != nil {
		handleError(logger, err)
	}

	os.Exit(ExitCodeSuccess)
}

// handleError logs err, prints a sanitized user-facing message, and
// exits with the code matching err's failure category. It never returns.
func handleError(logger logging.Logger, err error) {
	logger.Error("run failed", "error", err)
	fmt.Fprintln(os.Stderr, "Error:", sanitizeErrorMessage(err.Error()))
	os.Exit(exitCodeFor(err))
}

// exitCodeFor maps err to the process exit code matching its failure
// category; separated from handleError so the mapping can be tested
// without process exit.
func exitCodeFor(err error) int {
	if catErr, ok := llm.IsCategorizedError(err); ok {
		switch catErr.Category() {
		case llm.CategoryAuth:
			return ExitCodeAuthError
		case llm.CategoryRateLimit:
			return ExitCodeRateLimitError
		case llm.CategoryInvalidRequest:
			return ExitCodeInvalidRequest
		case llm.CategoryServer:
			return ExitCodeServerError
		case llm.CategoryNetwork:
			return ExitCodeNetworkError
		case llm.CategoryCancelled:
			return ExitCodeCancelled
		}
		return ExitCodeGenericError
	}
	if errors.Is(err, context.Canceled) {
		return ExitCodeCancelled
	}
	if errors.Is(err, engine.ErrAlreadyRun) {
		return ExitCodeConfigError
	}
	var inputErr *engine.InputValidationError
	if errors.As(err, &inputErr) {
		return ExitCodeConfigError
	}
	return ExitCodeGenericError
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk[-_][a-zA-Z0-9]{16,}`),
	regexp.MustCompile(`[a-zA-Z0-9_-]{32,}`),
}

// sanitizeErrorMessage redacts substrings that look like API keys before
// an error reaches stderr.
func sanitizeErrorMessage(message string) string {
	for _, pattern := range secretPatterns {
		message = pattern.ReplaceAllString(message, "[REDACTED]")
	}
	return message
}
