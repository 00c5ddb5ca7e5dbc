package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordReleaseReturnsBufferToPool(t *testing.T) {
	pool := newBufferPool(1)
	buf := pool.Alloc()
	require.Equal(t, 0, pool.size())

	rec := Record{Buf: buf}
	rec.release()

	require.Equal(t, 1, pool.size())
	require.Nil(t, rec.Buf)
}

func TestRecordReleaseNilBufferIsNoop(t *testing.T) {
	rec := Record{}
	require.NotPanics(t, rec.release)
}

func TestRecordReleaseIdempotent(t *testing.T) {
	pool := newBufferPool(1)
	rec := Record{Buf: pool.Alloc()}
	rec.release()
	require.NotPanics(t, rec.release)
	require.Equal(t, 1, pool.size())
}

func TestNewFlushBarrierCarriesNoBuffer(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	rec := newFlushBarrier(&wg)
	require.Equal(t, LevelFlushBarrier, rec.Level)
	require.Nil(t, rec.Buf)
	require.NotNil(t, rec.Waiter)
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", levelString(LevelDebug))
	require.Equal(t, "INFO", levelString(LevelInfo))
	require.Equal(t, "WARN", levelString(LevelWarn))
	require.Equal(t, "ERROR", levelString(LevelError))
	require.Equal(t, "FATAL", levelString(LevelFatal))
	require.Equal(t, "UNKNOWN", levelString(LevelFlushBarrier))
}
