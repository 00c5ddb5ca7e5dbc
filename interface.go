package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"
)

// defaultFatalSyncTimeout bounds how long Fatal waits on Sync before
// exiting anyway, so a stalled sink can never turn a Fatal call into a
// hang (spec.md §5 promises no forced cancellation of in-flight writes,
// but Fatal's caller is about to exit the process regardless).
const defaultFatalSyncTimeout = 5 * time.Second

// fatalExit is a var so tests can stub it out instead of killing the
// test binary.
var fatalExit = os.Exit

// producerKey is the context key AttachProducer stores a *ProducerCache
// under, so a caller that threads one context per goroutine pays for the
// pool refill once instead of on every call.
type producerKey struct{}

// AttachProducer returns a context carrying a fresh *ProducerCache for
// the running engine, for callers that want to pin one cache to one
// goroutine explicitly (the fast path). Callers that skip this still log
// correctly: logAt falls back to the running engine's sync.Pool of caches.
func AttachProducer(ctx context.Context) context.Context {
	st := current.Load()
	if st == nil {
		return ctx
	}
	pc := AcquireProducerCache(st.pool, st.cfg.Logger.Performance.TLSBufferCount)
	return context.WithValue(ctx, producerKey{}, pc)
}

// Logf is the public producer entry point spec.md §6 describes: early
// return below threshold, format into a pooled buffer, stamp metadata,
// push to the queue. On a rejected push the record's buffer returns to
// the pool and DropCount increments by exactly one, per spec.md §8
// property 2.
func Logf(ctx context.Context, level int64, format string, args ...any) {
	logAt(ctx, level, 0, 3, format, args)
}

// Debug, Info, Warn, Error, and Fatal log at their respective levels.
// Fatal additionally blocks for Sync and exits the process with status 1,
// the conventional Go logging-library behaviour (zap, zerolog) for a
// level named Fatal; spec.md's core never forces this, but a caller that
// wants plain non-fatal Error-level logging can call Logf directly.
func Debug(ctx context.Context, format string, args ...any) { logAt(ctx, LevelDebug, 0, 3, format, args) }
func Info(ctx context.Context, format string, args ...any)  { logAt(ctx, LevelInfo, 0, 3, format, args) }
func Warn(ctx context.Context, format string, args ...any)  { logAt(ctx, LevelWarn, 0, 3, format, args) }
func Error(ctx context.Context, format string, args ...any) { logAt(ctx, LevelError, 0, 3, format, args) }

// Fatal logs at LevelFatal, blocks until every sink has durably received
// it, then terminates the process.
func Fatal(ctx context.Context, format string, args ...any) {
	logAt(ctx, LevelFatal, 0, 3, format, args)
	syncCtx, cancel := context.WithTimeout(context.Background(), defaultFatalSyncTimeout)
	defer cancel()
	_ = Sync(syncCtx)
	fatalExit(1)
}

// DebugTrace, InfoTrace, WarnTrace, and ErrorTrace capture up to depth
// caller frames (spec.md §9, SPEC_FULL.md §10's call-site trace capture
// supplement) in addition to logging at their level.
func DebugTrace(ctx context.Context, depth int, format string, args ...any) {
	logAt(ctx, LevelDebug, int64(depth), 3, format, args)
}
func InfoTrace(ctx context.Context, depth int, format string, args ...any) {
	logAt(ctx, LevelInfo, int64(depth), 3, format, args)
}
func WarnTrace(ctx context.Context, depth int, format string, args ...any) {
	logAt(ctx, LevelWarn, int64(depth), 3, format, args)
}
func ErrorTrace(ctx context.Context, depth int, format string, args ...any) {
	logAt(ctx, LevelError, int64(depth), 3, format, args)
}

// Config reinitializes the running engine with cfg, equivalent to calling
// Init with one config argument.
func Config(cfg *LoggerConfig) error {
	return Init(context.Background(), cfg)
}

// logAt implements the shared body of every producer entry point.
// callerSkip is the number of stack frames between this function and the
// application's call site, used for both %file:line% and trace capture.
func logAt(ctx context.Context, level, traceDepth int64, callerSkip int, format string, args []any) {
	st := current.Load()
	if st == nil {
		return
	}
	if level < st.level.Load() {
		return
	}

	pc, pooled := producerFor(ctx, st)
	buf := pc.Get()
	if pooled {
		st.producers.Put(pc)
	}
	formatMessage(buf, format, args)

	file, line := callerLocation(callerSkip)
	var trace string
	if traceDepth > 0 {
		trace = captureTrace(traceDepth, callerSkip+1)
	}

	rec := Record{
		Level:      level,
		File:       file,
		Line:       line,
		ThreadHash: pc.ThreadHash,
		TimeNS:     st.wk.now(),
		Trace:      trace,
		Buf:        buf,
	}

	if !st.q.Push(rec) {
		rec.release()
		st.dropCount.Add(1)
	}
}

// producerFor resolves the *ProducerCache to format into: the one
// attached to ctx via AttachProducer if present (pooled=false: it is not
// the engine pool's to reclaim), otherwise one borrowed from the
// engine's sync.Pool (pooled=true: the caller must Put it
// back once done). The refill amortization spec.md §4.2 asks for still
// happens inside the borrowed cache itself, across however many times
// the pool hands the same instance back to the same goroutine.
func producerFor(ctx context.Context, st *engineState) (pc *ProducerCache, pooled bool) {
	if v, ok := ctx.Value(producerKey{}).(*ProducerCache); ok && v != nil {
		return v, false
	}
	return st.producers.Get().(*ProducerCache), true
}

// callerLocation returns the file/line of the application's call site,
// skip frames above logAt. runtime.Caller's file string is already an
// interned constant, matching spec.md §3's "static string, borrowed, not
// owned" for Record.File.
func callerLocation(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "(unknown)", 0
	}
	return file, line
}

// captureTrace renders up to depth caller frames as "outer -> inner ->
// deepest", ported from the teacher's processor.go getTrace.
func captureTrace(depth int64, skip int) string {
	if depth <= 0 {
		return ""
	}
	pcs := make([]uintptr, int(depth)+skip)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return "(unknown)"
	}

	frames := runtime.CallersFrames(pcs[:n])
	var trace []string
	count := 0
	for {
		frame, more := frames.Next()
		if !more || count >= int(depth) {
			break
		}
		funcName := filepath.Base(frame.Function)
		parts := strings.Split(funcName, ".")
		last := parts[len(parts)-1]
		if strings.HasPrefix(last, "func") && isAllDigits(last[4:]) {
			funcName = fmt.Sprintf("(anonymous %s)", funcName)
		}
		trace = append(trace, funcName)
		count++
	}
	if len(trace) == 0 {
		return "(unknown)"
	}
	for i := 0; i < len(trace)/2; i++ {
		j := len(trace) - i - 1
		trace[i], trace[j] = trace[j], trace[i]
	}
	return strings.Join(trace, " -> ")
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}
