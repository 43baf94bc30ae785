// Package testutil provides the end-to-end harness used by the integration
// tests: a temp dir populated with config and schema files, an App run
// against it, and the captured supergraph and log output.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Dir       string
	Output    string
	LogOutput string
	Err       error
}

// RunComposition writes files into a fresh temp dir and runs the app on the
// config named entry (relative to that dir), using a background context.
func RunComposition(t *testing.T, files map[string]string, entry string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()
	return RunCompositionWithContext(context.Background(), t, files, entry, opts...)
}

// RunCompositionWithContext is RunComposition with a caller-provided context.
func RunCompositionWithContext(ctx context.Context, t *testing.T, files map[string]string, entry string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()

	// 1. Lay out the files; relative paths create subdirectories.
	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	// 2. Configure the app the way the CLI would.
	cfg := app.Config{
		ConfigPath: filepath.Join(tmpDir, entry),
		LogLevel:   "debug",
		LogFormat:  "text",
		Workers:    4,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out, logs := &SafeBuffer{}, &SafeBuffer{}
	result := &HarnessResult{Dir: tmpDir}

	testApp, err := app.NewApp(out, logs, appConfig, nil)
	if err == nil {
		err = testApp.Run(ctx)
	}
	result.Output = out.String()
	result.LogOutput = logs.String()
	result.Err = err

	if os.Getenv("FEDCOMPOSE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
