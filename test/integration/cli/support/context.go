package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastStdout   string
	LastStderr   string
	LastOutput   string // stdout followed by stderr
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	TempDir   string
	SourceDir string
	OutputDir string

	// LastFile is the file most recently checked by a file step.
	LastFile string

	savedEnv map[string]*string
}

// NewTestContext creates a new test context with fresh source and output
// folders and an isolated configuration environment.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "dmscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx := &TestContext{
		TempDir:   tempDir,
		SourceDir: filepath.Join(tempDir, "source"),
		OutputDir: filepath.Join(tempDir, "output"),
		savedEnv:  map[string]*string{},
	}
	if err := os.MkdirAll(ctx.SourceDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create source directory: %w", err)
	}

	// keep user configuration out of the scenarios
	ctx.SetEnv("HOME", filepath.Join(tempDir, "home"))
	ctx.SetEnv("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg"))
	return ctx, nil
}

// SetEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) {
	if _, saved := testCtx.savedEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.savedEnv[name] = &old
		} else {
			testCtx.savedEnv[name] = nil
		}
	}
	_ = os.Setenv(name, value)
}

// Cleanup restores the environment and removes the scenario's files.
func (testCtx *TestContext) Cleanup() error {
	for name, old := range testCtx.savedEnv {
		if old == nil {
			_ = os.Unsetenv(name)
		} else {
			_ = os.Setenv(name, *old)
		}
	}
	testCtx.savedEnv = map[string]*string{}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// Path resolves a scenario-relative path inside the temp directory.
func (testCtx *TestContext) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(testCtx.TempDir, filepath.FromSlash(rel))
}
