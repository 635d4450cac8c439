package runner

import "context"

// MockRunner is a testing double for Runner.
type MockRunner struct {
	RunFunc func(ctx context.Context, projectDir, reportsDir string) (int, error)
}

func (m *MockRunner) Run(ctx context.Context, projectDir, reportsDir string) (int, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, projectDir, reportsDir)
	}
	return 0, nil
}
