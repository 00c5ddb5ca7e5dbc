package logger

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestConsoleSink builds a ConsoleSink writing into an in-memory buffer
// instead of os.Stdout, for assertions on rendered output.
func newTestConsoleSink(color bool) (*ConsoleSink, *bytes.Buffer) {
	var out bytes.Buffer
	c := &ConsoleSink{
		dest:  &out,
		w:     bufio.NewWriterSize(&out, 4096),
		color: color,
		tc:    newTimeCache(""),
	}
	return c, &out
}

func TestConsoleSinkLogWritesLine(t *testing.T) {
	c, out := newTestConsoleSink(false)
	pool := newBufferPool(1)
	buf := pool.Alloc()
	buf.Append([]byte("hello"))

	rec := &Record{Level: LevelInfo, File: "a.go", Line: 1, Buf: buf}
	require.NoError(t, c.Log(rec))
	require.NoError(t, c.Flush())

	require.Contains(t, out.String(), "hello")
	require.Contains(t, out.String(), "INFO")
}

func TestConsoleSinkColorWrapsAnsiAndResets(t *testing.T) {
	c, out := newTestConsoleSink(true)
	pool := newBufferPool(1)
	buf := pool.Alloc()
	buf.Append([]byte("x"))

	rec := &Record{Level: LevelError, File: "a.go", Line: 1, Buf: buf}
	require.NoError(t, c.Log(rec))
	require.NoError(t, c.Flush())

	line := out.String()
	require.Contains(t, line, ansiRed)
	require.Contains(t, line, ansiReset)
}

func TestConsoleSinkSyncIsNoop(t *testing.T) {
	c, _ := newTestConsoleSink(false)
	require.NoError(t, c.Sync())
}

func TestConsoleSinkLogBatchPreservesOrder(t *testing.T) {
	c, out := newTestConsoleSink(false)
	pool := newBufferPool(3)

	var recs []*Record
	for i := 0; i < 3; i++ {
		buf := pool.Alloc()
		buf.Append([]byte{byte('a' + i)})
		recs = append(recs, &Record{Level: LevelInfo, File: "a.go", Line: i, Buf: buf})
	}

	require.NoError(t, c.LogBatch(recs))

	lines := splitLines(out.String())
	require.Len(t, lines, 3)
	for i, line := range lines {
		require.Contains(t, line, string(byte('a'+i)))
	}
}

func TestConsoleSinkApplyConfigUpdatesColor(t *testing.T) {
	c, _ := newTestConsoleSink(false)
	require.NoError(t, c.ApplyConfig(SinkConfig{ConsoleColor: true}))
	require.True(t, c.color)
}

func TestNewConsoleSinkSizesWriterFromBufSize(t *testing.T) {
	c := NewConsoleSink(false, 2048)
	require.Equal(t, 2048, c.w.Size())
}

func TestNewConsoleSinkFallsBackToDefaultBufferSizeWhenNonPositive(t *testing.T) {
	c := NewConsoleSink(false, 0)
	require.Equal(t, defaultConsoleBufferSize, c.w.Size())
}

func TestConsoleSinkApplyConfigResizesWriterOnPositiveBufferSize(t *testing.T) {
	c, out := newTestConsoleSink(false)
	require.Equal(t, 4096, c.w.Size())

	require.NoError(t, c.ApplyConfig(SinkConfig{ConsoleBufferSize: 1024}))
	require.Equal(t, 1024, c.w.Size())

	pool := newBufferPool(1)
	buf := pool.Alloc()
	buf.Append([]byte("resized"))
	require.NoError(t, c.Log(&Record{Level: LevelInfo, File: "a.go", Line: 1, Buf: buf}))
	require.NoError(t, c.Flush())
	require.Contains(t, out.String(), "resized")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, b := range s {
		if b == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
