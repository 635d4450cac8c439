package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liftdev/lift/internal/engine"
	"github.com/liftdev/lift/internal/llm"
)

func TestExitCodeFor_CategorizedErrors(t *testing.T) {
	cases := []struct {
		category llm.ErrorCategory
		want     int
	}{
		{llm.CategoryAuth, ExitCodeAuthError},
		{llm.CategoryRateLimit, ExitCodeRateLimitError},
		{llm.CategoryInvalidRequest, ExitCodeInvalidRequest},
		{llm.CategoryServer, ExitCodeServerError},
		{llm.CategoryNetwork, ExitCodeNetworkError},
		{llm.CategoryCancelled, ExitCodeCancelled},
		{llm.CategoryAuth - 1, ExitCodeGenericError}, // unmapped category falls through
	}
	for _, tc := range cases {
		err := llm.Wrap(errors.New("boom"), "openai", "failure", tc.category)
		assert.Equal(t, tc.want, exitCodeFor(err))
	}
}

func TestExitCodeFor_ContextCancelled(t *testing.T) {
	assert.Equal(t, ExitCodeCancelled, exitCodeFor(context.Canceled))
}

func TestExitCodeFor_EngineConfigErrors(t *testing.T) {
	assert.Equal(t, ExitCodeConfigError, exitCodeFor(engine.ErrAlreadyRun))
	assert.Equal(t, ExitCodeConfigError, exitCodeFor(&engine.InputValidationError{Path: "input/generator.md"}))
}

func TestExitCodeFor_UnrecognizedErrorIsGeneric(t *testing.T) {
	assert.Equal(t, ExitCodeGenericError, exitCodeFor(errors.New("mystery failure")))
}

func TestSanitizeErrorMessage_RedactsLongTokens(t *testing.T) {
	msg := sanitizeErrorMessage("openai: auth failed: sk-abcdefghijklmnopqrstuvwxyz")
	assert.NotContains(t, msg, "sk-abcdefghijklmnopqrstuvwxyz")
	assert.Contains(t, msg, "[REDACTED]")
}
