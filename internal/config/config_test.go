package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_FallbackModel(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MAX_ITER=5\nLIFT_MODEL=gpt-5\nOPENAI_API_KEY=sk-test\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "calculator", cfg.PUT)
	assert.Equal(t, 5, cfg.MaxIter)
	assert.Equal(t, "gpt-5", cfg.GenModel)
	assert.Equal(t, "gpt-5", cfg.DebugModel)
	assert.Equal(t, "gpt-5", cfg.EvalModel)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_PerAgentModels(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MAX_ITER=3\n"+
		"LIFT_GEN_MODEL=gpt-5\nLIFT_DEBUG_MODEL=gemini-2.5-pro\nLIFT_EVAL_MODEL=gpt-5\n"+
		"OPENAI_API_KEY=sk-test\nGEMINI_API_KEY=gk-test\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", cfg.GenModel)
	assert.Equal(t, "gemini-2.5-pro", cfg.DebugModel)
	assert.Equal(t, "gpt-5", cfg.EvalModel)
}

func TestLoad_FallbackAndPerAgentCoexist_Fails(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MAX_ITER=3\n"+
		"LIFT_MODEL=gpt-5\nLIFT_GEN_MODEL=gpt-5\nLIFT_DEBUG_MODEL=gpt-5\nLIFT_EVAL_MODEL=gpt-5\n"+
		"OPENAI_API_KEY=sk-test\n")

	_, err := Load(path)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "LIFT_MODEL", cfgErr.Field)
}

func TestLoad_PartialPerAgentModels_Fails(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MAX_ITER=3\nLIFT_GEN_MODEL=gpt-5\nOPENAI_API_KEY=sk-test\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingMaxIter_Fails(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MODEL=gpt-5\nOPENAI_API_KEY=sk-test\n")

	_, err := Load(path)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "LIFT_MAX_ITER", cfgErr.Field)
}

func TestLoad_NonPositiveMaxIter_Fails(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MAX_ITER=0\nLIFT_MODEL=gpt-5\nOPENAI_API_KEY=sk-test\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_UnknownModelProvider_Fails(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MAX_ITER=3\nLIFT_MODEL=mystery-model\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingCredentialForModel_Fails(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=calculator\nLIFT_MAX_ITER=3\nLIFT_MODEL=gpt-5\n")

	_, err := Load(path)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Field)
}

func TestLoad_ProcessEnvOverridesFile(t *testing.T) {
	path := writeEnv(t, "LIFT_PUT=file-value\nLIFT_MAX_ITER=3\nLIFT_MODEL=gpt-5\nOPENAI_API_KEY=sk-test\n")

	t.Setenv("LIFT_PUT", "env-value")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-value", cfg.PUT)
}

func TestLoad_MissingFile_Fails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestModelProvider(t *testing.T) {
	p, ok := ModelProvider("gpt-5")
	require.True(t, ok)
	assert.Equal(t, ProviderOpenAI, p)

	p, ok = ModelProvider("gemini-2.5-pro")
	require.True(t, ok)
	assert.Equal(t, ProviderGemini, p)

	_, ok = ModelProvider("llama-3")
	assert.False(t, ok)
}
