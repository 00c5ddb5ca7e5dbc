package logger

import (
	"context"
	"sync/atomic"
	"time"
)

// workerState mirrors spec.md §4.4's Running/Stopping/Stopped machine.
type workerState int32

const (
	workerRunning workerState = iota
	workerStopping
	workerStopped
)

// worker is the single long-lived goroutine that drains the queue and
// dispatches to sinks, per spec.md §4.4.
type worker struct {
	q           *queue
	sinks       *SinkSet
	pool        *bufferPool
	state       atomic.Int32
	batchSize   int
	idleSleep   time.Duration
	coarseTime  atomic.Int64
	coarseQuit  chan struct{}
	coarseDone  chan struct{}
	doneCh      chan struct{}
	dropCount   *atomic.Uint64
	loggedDrops uint64
}

func newWorker(q *queue, sinks *SinkSet, pool *bufferPool, batchSize int, idleSleep time.Duration, dropCount *atomic.Uint64) *worker {
	w := &worker{
		q:          q,
		sinks:      sinks,
		pool:       pool,
		batchSize:  batchSize,
		idleSleep:  idleSleep,
		coarseQuit: make(chan struct{}),
		coarseDone: make(chan struct{}),
		doneCh:     make(chan struct{}),
		dropCount:  dropCount,
	}
	w.state.Store(int32(workerRunning))
	w.coarseTime.Store(time.Now().UnixNano())
	return w
}

// start launches the worker loop and the coarse-time sampling goroutine.
func (w *worker) start(coarseInterval time.Duration) {
	go w.runCoarseTime(coarseInterval)
	go w.run()
}

func (w *worker) runCoarseTime(interval time.Duration) {
	defer close(w.coarseDone)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.coarseQuit:
			return
		case <-ticker.C:
			w.coarseTime.Store(time.Now().UnixNano())
		}
	}
}

// now returns the coarse timestamp producers should use on the hot path,
// trading sub-millisecond precision for removing a syscall per record.
func (w *worker) now() int64 { return w.coarseTime.Load() }

func (w *worker) run() {
	defer close(w.doneCh)
	batch := make([]Record, 0, w.batchSize)

	for {
		state := workerState(w.state.Load())
		batch = w.q.PopBatch(batch, w.batchSize)

		if len(batch) == 0 {
			if state == workerStopping {
				w.state.Store(int32(workerStopped))
				return
			}
			time.Sleep(w.idleSleep)
			continue
		}

		w.reportDropsIfAny()

		for i := range batch {
			rec := &batch[i]
			if rec.Level == LevelFlushBarrier {
				_ = w.sinks.FlushAll()
				if rec.Waiter != nil {
					rec.Waiter.Done()
				}
				continue
			}
			for _, sink := range w.sinks.Snapshot() {
				if err := sink.Log(rec); err != nil {
					diag("%s: %v", sink.Name(), err)
				}
			}
			rec.release()
		}
	}
}

// reportDropsIfAny emits a single synthetic Error-level record through
// every attached sink once dropCount has increased since the last report,
// per SPEC_FULL.md §10's "dropped-log self-reporting" supplement. It runs
// on the worker goroutine itself, so it dispatches directly rather than
// going back through the queue. It is observability only, never a
// correctness requirement.
func (w *worker) reportDropsIfAny() {
	if w.dropCount == nil || w.pool == nil {
		return
	}
	current := w.dropCount.Load()
	if current <= w.loggedDrops {
		return
	}
	delta := current - w.loggedDrops
	w.loggedDrops = current

	buf := w.pool.Alloc()
	formatMessage(buf, "dropped {} records since last report (total {})", []any{delta, current})
	rec := &Record{
		Level:  LevelError,
		File:   "logengine",
		TimeNS: w.now(),
		Buf:    buf,
	}
	for _, sink := range w.sinks.Snapshot() {
		if err := sink.Log(rec); err != nil {
			diag("%s: %v", sink.Name(), err)
		}
	}
	rec.release()
}

// stop transitions to Stopping and waits for the drain to finish, honoring
// ctx for the caller's own deadline without abandoning the drain itself:
// the worker goroutine keeps running to completion regardless, per
// spec.md §5's "no forced cancellation of in-flight writes".
func (w *worker) stop(ctx context.Context) {
	w.state.Store(int32(workerStopping))
	close(w.coarseQuit)

	select {
	case <-w.doneCh:
	case <-ctx.Done():
	}
	<-w.coarseDone
}
