package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAttachProducerReusesSameCacheAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "j.log")
	require.NoError(t, Init(context.Background(), testConfig(t, path)))
	defer Shutdown(context.Background())

	ctx := AttachProducer(context.Background())
	Info(ctx, "one")
	Info(ctx, "two")
	require.NoError(t, Sync(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	// Both lines came from the same attached producer, so they must share a
	// thread-hash field.
	firstHash := strings.Fields(lines[0])[2]
	secondHash := strings.Fields(lines[1])[2]
	require.Equal(t, firstHash, secondHash)
}

func TestLogfIncludesCallSiteFileAndLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "k.log")
	require.NoError(t, Init(context.Background(), testConfig(t, path)))
	defer Shutdown(context.Background())

	Info(context.Background(), "marker")
	require.NoError(t, Sync(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "interface_test.go")
}

func TestInfoTraceCapturesCallerFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "l.log")
	require.NoError(t, Init(context.Background(), testConfig(t, path)))
	defer Shutdown(context.Background())

	func() {
		InfoTrace(context.Background(), 2, "traced")
	}()
	require.NoError(t, Sync(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[")
	require.Contains(t, string(data), "]")
}

func TestFatalSyncsThenExits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.log")
	require.NoError(t, Init(context.Background(), testConfig(t, path)))
	defer Shutdown(context.Background())

	var exitCode int
	exited := make(chan struct{})
	orig := fatalExit
	fatalExit = func(code int) {
		exitCode = code
		close(exited)
	}
	defer func() { fatalExit = orig }()

	Fatal(context.Background(), "fatal-marker")

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("fatalExit was never called")
	}
	require.Equal(t, 1, exitCode)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "fatal-marker")
}

func TestLogfNoopWhenNotRunning(t *testing.T) {
	require.NoError(t, Shutdown(context.Background()))
	require.NotPanics(t, func() {
		Info(context.Background(), "into the void")
	})
}

func TestConfigReinitializesRunningEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n.log")
	require.NoError(t, Config(testConfig(t, path)))
	defer Shutdown(context.Background())

	Info(context.Background(), "via-config")
	require.NoError(t, Sync(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "via-config")
}
