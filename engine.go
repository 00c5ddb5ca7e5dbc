package logger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// defaultCoarseInterval is spec.md §4.4/§9's coarse-time sampling period.
const defaultCoarseInterval = time.Millisecond

// defaultIdleSleep is spec.md §4.4's worker idle sleep when the queue is
// empty.
const defaultIdleSleep = 100 * time.Microsecond

// engineState bundles everything a running logger owns: the buffer pool,
// the queue, the worker (and its coarse-time goroutine), the attached
// sinks, and the mutable level. Exactly one engineState is live at a
// time, swapped in by Init and torn down by Shutdown — mirroring the
// teacher's config.go singleton, generalized from package vars to one
// struct behind an atomic.Pointer so Init/Shutdown/Init cycles clean.
type engineState struct {
	cfg   *LoggerConfig
	pool  *bufferPool
	q     *queue
	wk    *worker
	sinks *SinkSet

	level     atomic.Int64
	dropCount atomic.Uint64

	producers sync.Pool // of *ProducerCache, for callers that never AttachProducer
}

var (
	current atomic.Pointer[engineState]
	initMu  sync.Mutex

	// disabled short-circuits EnsureInitialized after a failed lazy init,
	// mirroring the teacher's loggerDisabled: once default auto-init
	// fails, producer calls drop silently instead of retrying every time.
	disabled atomic.Bool
)

// Init builds and starts a new engine from cfg (or spec.md §6 defaults if
// omitted), replacing any currently running one. A validation failure
// leaves the previously running engine, if any, untouched.
func Init(ctx context.Context, cfgs ...*LoggerConfig) error {
	initMu.Lock()
	defer initMu.Unlock()
	return initLocked(ctx, cfgs...)
}

// initLocked is the body of Init; the caller holds initMu.
func initLocked(ctx context.Context, cfgs ...*LoggerConfig) error {
	var userCfg *LoggerConfig
	if len(cfgs) > 0 {
		userCfg = cfgs[0]
	}
	cfg := mergeConfig(userCfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	st := &engineState{cfg: cfg}
	st.level.Store(cfg.Logger.Level)
	st.pool = newBufferPool(cfg.Logger.Performance.BufferPoolSize)
	st.producers = sync.Pool{New: func() any {
		return AcquireProducerCache(st.pool, cfg.Logger.Performance.TLSBufferCount)
	}}
	st.q = newQueue(
		cfg.Logger.Performance.QueueCapacity,
		fullPolicyFromString(cfg.Logger.FullPolicy),
		blockTimeoutFromMicros(cfg.Logger.Performance.QueueBlockTimeoutUS),
	)
	st.sinks = newSinkSet()

	if err := attachConfiguredSinks(st.sinks, cfg); err != nil {
		return err
	}

	st.wk = newWorker(st.q, st.sinks, st.pool, cfg.Logger.Performance.WorkerBatchSize, defaultIdleSleep, &st.dropCount)
	st.wk.start(defaultCoarseInterval)

	if old := current.Swap(st); old != nil {
		old.wk.stop(ctx)
		old.q.close()
		_ = old.sinks.FlushAll()
	}
	disabled.Store(false)
	return nil
}

// attachConfiguredSinks instantiates the Console/File/Http sinks named by
// cfg. The console sink defaults to enabled; file and http are opt-in via
// a non-empty log path / Enabled flag respectively, per spec.md §6.
func attachConfiguredSinks(sinks *SinkSet, cfg *LoggerConfig) error {
	if boolValue(cfg.Sink.Console.Enabled) {
		sinks.Add(NewConsoleSink(cfg.Sink.Console.Color, cfg.Sink.Console.ConsoleBufferSizeKB*1024))
	}
	if cfg.Sink.File.LogPath != "" {
		fs, err := NewFileSink(FileSinkConfig{
			Path:            cfg.Sink.File.LogPath,
			BufferSizeBytes: cfg.Sink.File.FileBufferSizeKB * 1024,
			Policy:          rotatePolicyFromString(cfg.Sink.File.RotatePolicy),
			RotateSizeMB:    cfg.Sink.File.RotateSizeMB,
			MaxRotateFiles:  cfg.Sink.File.MaxRotateFiles,
			MaxTotalSizeMB:  cfg.Sink.File.MaxTotalSizeMB,
			MinDiskFreeMB:   cfg.Sink.File.MinDiskFreeMB,
			TimeFormat:      cfg.Logger.TimeFormat,
		})
		if err != nil {
			return err
		}
		sinks.Add(fs)
	}
	if boolValue(cfg.Sink.Http.Enabled) {
		sinks.Add(NewHTTPSink(HTTPSinkConfig{
			Endpoint:   cfg.Sink.Http.Endpoint,
			BatchSize:  cfg.Sink.Http.BatchSize,
			MaxRetries: cfg.Sink.Http.MaxRetries,
			Timeout:    time.Duration(cfg.Sink.Http.TimeoutMS) * time.Millisecond,
		}))
	}
	return nil
}

// EnsureInitialized lazily calls Init with defaults on first use, for
// callers (the quick package, chiefly) that never call Init explicitly.
// Once a lazy init fails it will not retry; producer calls drop silently
// from then on, per the teacher's ensureInitialized.
func EnsureInitialized() bool {
	if disabled.Load() {
		return false
	}
	if current.Load() != nil {
		return true
	}
	initMu.Lock()
	defer initMu.Unlock()
	if disabled.Load() || current.Load() != nil {
		return current.Load() != nil
	}
	if err := initLocked(context.Background()); err != nil {
		disabled.Store(true)
		return false
	}
	return true
}

// AddSink attaches an additional sink to the running engine. Returns
// ErrNotRunning if no engine is active.
func AddSink(s Sink) error {
	st := current.Load()
	if st == nil {
		return ErrNotRunning
	}
	st.sinks.Add(s)
	return nil
}

// SetLevel changes the running engine's threshold; hot-reloadable per
// spec.md §6. A no-op if no engine is running.
func SetLevel(level int64) {
	if st := current.Load(); st != nil {
		st.level.Store(level)
	}
}

// Level returns the running engine's current threshold, or LevelInfo if
// no engine is running.
func Level() int64 {
	if st := current.Load(); st != nil {
		return st.level.Load()
	}
	return LevelInfo
}

// Flush forces every attached sink to push pending bytes to the OS
// without the full flush-barrier wait Sync performs. No-op if not
// running, per spec.md §7's "flush on stopped logger".
func Flush() error {
	if st := current.Load(); st != nil {
		return st.sinks.FlushAll()
	}
	return nil
}

// Sync force-enqueues a flush barrier and blocks until the worker has
// flushed every sink for every record enqueued strictly before this
// call, per spec.md §3/§5/§8 property 5. Returns ctx.Err() if ctx is
// cancelled first; the barrier itself is never abandoned mid-flight.
func Sync(ctx context.Context) error {
	st := current.Load()
	if st == nil {
		return nil
	}
	var wg sync.WaitGroup
	wg.Add(1)
	st.q.ForcePush(newFlushBarrier(&wg))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DropCount returns the number of records rejected by backpressure since
// the current engine was started.
func DropCount() uint64 {
	if st := current.Load(); st != nil {
		return st.dropCount.Load()
	}
	return 0
}

// Shutdown drains the queue completely, flushes and syncs every sink,
// and stops the worker and coarse-time goroutines, per spec.md §5's
// graceful shutdown sequence. Subsequent producer calls are silently
// ignored until the next Init.
func Shutdown(ctxs ...context.Context) error {
	initMu.Lock()
	defer initMu.Unlock()

	ctx := context.Background()
	if len(ctxs) > 0 {
		ctx = ctxs[0]
	}

	st := current.Swap(nil)
	if st == nil {
		return nil
	}
	st.wk.stop(ctx)
	st.q.close()
	for _, s := range st.sinks.Snapshot() {
		_ = s.Flush()
		_ = s.Sync()
	}
	return nil
}
