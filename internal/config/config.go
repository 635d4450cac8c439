// Package config loads and validates the process-wide LIFT configuration
// from an environment file plus the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider identifies which LLM backend a model identifier resolves to.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ConfigError reports a missing or invalid configuration field. It is
// fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config is the process-wide configuration built once from input/.env.
type Config struct {
	PUT        string
	MaxIter    int
	GenModel   string
	DebugModel string
	EvalModel  string

	OpenAIAPIKey string
	GeminiAPIKey string

	LogLevel string
}

// ModelProvider resolves which Provider a model identifier belongs to,
// by known-name/prefix lookup against a small built-in registry. Unknown
// models are rejected at Load time.
func ModelProvider(model string) (Provider, bool) {
	switch {
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return ProviderOpenAI, true
	case strings.HasPrefix(model, "gemini-"):
		return ProviderGemini, true
	default:
		return "", false
	}
}

// Load reads envPath (an .env-format file) and merges it under the
// process environment — a value already present in the process
// environment always wins, so CI/CD secrets injected as real env vars
// are never shadowed by the checked-in file — then builds and
// validates a Config.
func Load(envPath string) (*Config, error) {
	fileVars, err := godotenv.Read(envPath)
	if err != nil {
		return nil, &ConfigError{Field: "env_file", Reason: err.Error()}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		if v, ok := fileVars[key]; ok && v != "" {
			return v, true
		}
		return "", false
	}

	cfg := &Config{LogLevel: "info"}

	put, ok := lookup("LIFT_PUT")
	if !ok {
		return nil, &ConfigError{Field: "LIFT_PUT", Reason: "required"}
	}
	cfg.PUT = put

	maxIterRaw, ok := lookup("LIFT_MAX_ITER")
	if !ok {
		return nil, &ConfigError{Field: "LIFT_MAX_ITER", Reason: "required"}
	}
	maxIter, err := strconv.Atoi(maxIterRaw)
	if err != nil || maxIter <= 0 {
		return nil, &ConfigError{Field: "LIFT_MAX_ITER", Reason: "must be a positive integer"}
	}
	cfg.MaxIter = maxIter

	fallback, hasFallback := lookup("LIFT_MODEL")
	gen, hasGen := lookup("LIFT_GEN_MODEL")
	debug, hasDebug := lookup("LIFT_DEBUG_MODEL")
	eval, hasEval := lookup("LIFT_EVAL_MODEL")
	perAgentCount := boolCount(hasGen, hasDebug, hasEval)

	switch {
	case hasFallback && perAgentCount > 0:
		return nil, &ConfigError{Field: "LIFT_MODEL", Reason: "must not coexist with LIFT_GEN_MODEL/LIFT_DEBUG_MODEL/LIFT_EVAL_MODEL"}
	case hasFallback:
		cfg.GenModel, cfg.DebugModel, cfg.EvalModel = fallback, fallback, fallback
	case perAgentCount == 3:
		cfg.GenModel, cfg.DebugModel, cfg.EvalModel = gen, debug, eval
	default:
		return nil, &ConfigError{Field: "LIFT_MODEL", Reason: "set LIFT_MODEL, or all three of LIFT_GEN_MODEL/LIFT_DEBUG_MODEL/LIFT_EVAL_MODEL"}
	}

	if level, ok := lookup("LIFT_LOG_LEVEL"); ok {
		cfg.LogLevel = level
	}

	for _, model := range []string{cfg.GenModel, cfg.DebugModel, cfg.EvalModel} {
		provider, known := ModelProvider(model)
		if !known {
			return nil, &ConfigError{Field: "model", Reason: fmt.Sprintf("%q does not belong to a known provider", model)}
		}
		switch provider {
		case ProviderOpenAI:
			key, ok := lookup("OPENAI_API_KEY")
			if !ok {
				return nil, &ConfigError{Field: "OPENAI_API_KEY", Reason: fmt.Sprintf("required by model %q", model)}
			}
			cfg.OpenAIAPIKey = key
		case ProviderGemini:
			key, ok := lookup("GEMINI_API_KEY")
			if !ok {
				return nil, &ConfigError{Field: "GEMINI_API_KEY", Reason: fmt.Sprintf("required by model %q", model)}
			}
			cfg.GeminiAPIKey = key
		}
	}

	return cfg, nil
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
