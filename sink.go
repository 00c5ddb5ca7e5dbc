package logger

import "sync"

// SinkConfig is the mutable settings snapshot a Sink may reapply at
// runtime via ApplyConfig, per spec.md §4.5. Unused fields for a given
// sink variant are ignored.
type SinkConfig struct {
	Level             int64
	TimeFormat        string
	FileBufferSize    int
	LogPath           string
	RotatePolicy      RotatePolicy
	RotateSizeMB      int64
	MaxRotateFiles    int
	ConsoleColor      bool
	ConsoleBufferSize int
}

// Sink is the capability set every output adapter exposes, per spec.md
// §4.5. The worker only ever calls methods of this interface — an open-ended
// fourth variant can be added via RegisterSinkFactory without the worker
// needing to know its concrete type.
type Sink interface {
	Log(r *Record) error
	LogBatch(rs []*Record) error
	Flush() error
	Sync() error
	ApplyConfig(cfg SinkConfig) error
	Name() string
}

// baseLogBatch is the default LogBatch behaviour (dispatch one by one);
// a sink's LogBatch may call it, or batch more efficiently on its own.
func baseLogBatch(s Sink, rs []*Record) error {
	var firstErr error
	for _, r := range rs {
		if err := s.Log(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SinkSet is the ordered collection of sinks owned by the worker.
type SinkSet struct {
	mu    sync.RWMutex
	sinks []Sink
}

func newSinkSet() *SinkSet { return &SinkSet{} }

// Add appends a sink; order determines per-record dispatch order.
func (s *SinkSet) Add(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Snapshot returns the current sink list for iteration without holding the
// lock across I/O.
func (s *SinkSet) Snapshot() []Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sink, len(s.sinks))
	copy(out, s.sinks)
	return out
}

// FlushAll calls Flush on every sink, in order, collecting the first error.
func (s *SinkSet) FlushAll() error {
	var firstErr error
	for _, sink := range s.Snapshot() {
		if err := sink.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SinkFactory constructs a Sink from a SinkConfig; used by the open-ended
// registration mechanism spec.md §9 permits for a fourth sink variant.
type SinkFactory func(cfg SinkConfig) (Sink, error)

var (
	sinkFactoriesMu sync.Mutex
	sinkFactories   = map[string]SinkFactory{}
)

// RegisterSinkFactory registers a named sink constructor so it can be
// instantiated generically (e.g. from configuration) without the worker
// ever needing to special-case it — the worker only calls Sink methods,
// never downcasts.
func RegisterSinkFactory(name string, factory SinkFactory) {
	sinkFactoriesMu.Lock()
	defer sinkFactoriesMu.Unlock()
	sinkFactories[name] = factory
}

// NewRegisteredSink looks up a previously registered factory by name.
func NewRegisteredSink(name string, cfg SinkConfig) (Sink, bool, error) {
	sinkFactoriesMu.Lock()
	factory, ok := sinkFactories[name]
	sinkFactoriesMu.Unlock()
	if !ok {
		return nil, false, nil
	}
	sink, err := factory(cfg)
	return sink, true, err
}
