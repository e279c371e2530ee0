package cmd

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/dmscan/internal/barcode"
	"github.com/MeKo-Tech/dmscan/internal/config"
	"github.com/MeKo-Tech/dmscan/internal/version"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp returns an app with an isolated configuration environment. A nil
// locator selects the real decoder.
func testApp(t *testing.T, locator barcode.Locator) *app {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a := &app{v: viper.New(), logger: slog.Default(), newLocator: barcode.NewLocator}
	if locator != nil {
		a.newLocator = func(barcode.Options) barcode.Locator { return locator }
	}
	return a
}

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, a *app, args ...string) result {
	t.Helper()
	return runContext(t, context.Background(), a, args...)
}

func runContext(t *testing.T, ctx context.Context, a *app, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := a.rootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// textLocator reports one detection covering the whole image.
func textLocator(text string) barcode.Locator {
	return barcode.LocatorFunc(func(ctx context.Context, img image.Image) ([]barcode.Detection, error) {
		return []barcode.Detection{{Text: text, BBox: img.Bounds()}}, nil
	})
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "dmscan", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"batch", "analyze", "list", "config"})
}

func TestRootCommandHelp(t *testing.T) {
	res := run(t, testApp(t, nil), "--help")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Data Matrix")
	assert.Contains(t, res.stdout, "Available Commands:")
	assert.Contains(t, res.stdout, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	res := run(t, testApp(t, nil), "--version")
	require.NoError(t, res.err)
	assert.Equal(t, "dmscan version "+version.String()+"\n", res.stdout)
}

func TestRootCommand_InvalidConfigFile(t *testing.T) {
	res := run(t, testApp(t, nil), "--config", filepath.Join(t.TempDir(), "missing.yaml"), "list", ".")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "error loading configuration")
}

func TestRootCommand_LogLevel(t *testing.T) {
	dir := t.TempDir()

	res := run(t, testApp(t, nil), "--verbose", "list", dir)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, `"msg":"listed images"`)

	res = run(t, testApp(t, nil), "list", dir)
	require.NoError(t, res.err)
	assert.NotContains(t, res.stderr, "listed images")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		want slog.Level
	}{
		{config.Config{LogLevel: "debug"}, slog.LevelDebug},
		{config.Config{LogLevel: "info"}, slog.LevelInfo},
		{config.Config{LogLevel: "warn"}, slog.LevelWarn},
		{config.Config{LogLevel: "error"}, slog.LevelError},
		{config.Config{LogLevel: "error", Verbose: true}, slog.LevelDebug},
		{config.Config{}, slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logLevel(&tt.cfg))
	}
}
