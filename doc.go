// Package logger implements an asynchronous logging engine built around a
// single-consumer worker draining a bounded multi-producer queue. Producers
// never touch a sink directly: a Logf call formats into a pooled buffer,
// enqueues a Record, and returns, while the worker goroutine dispatches
// batches to whichever Console/File/Http sinks are attached.
//
// The queue's backpressure policy (Block with a timeout, or Drop) is
// configured once at Init and governs what happens when producers outrun
// the worker. Buffers are never freed back to the OS once allocated; they
// cycle between a shared pool, per-producer caches, and in-flight Records.
// File output supports size- and day-based rotation plus count- and
// disk-space-based retention of the rotated files it leaves behind. A
// Sync call enqueues a flush barrier and blocks until every record
// submitted before it has been durably flushed through every sink,
// without abandoning anything already in flight.
//
// See the quick subpackage for a package-level API that lazily initializes
// a default engine for callers that don't want to manage a handle.
package logger
