// Package configsource loads a logengine.LoggerConfig from a TOML file
// with viper, following the nested-mapstructure loading idiom
// _examples/jittakal-kafka-lab's internal/config package uses for its own
// Kafka producer config, and layers on the level-only hot reload poller
// spec.md §9 describes.
package configsource

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	logger "github.com/lixenwraith/logengine"
)

// Load reads path (TOML) into a fresh logengine.LoggerConfig, starting from
// the engine's documented defaults so an unset field keeps its default
// rather than unmarshaling to the zero value.
func Load(path string) (*logger.LoggerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("configsource: read %s: %w", path, err)
	}

	cfg := logger.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("configsource: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// Watcher polls path on an interval and pushes any level change to the
// running engine via logger.SetLevel, without touching any other field.
// spec.md §9 restricts hot configuration to the level only; rotation,
// queue capacity, and sink wiring all require a fresh logger.Init.
type Watcher struct {
	path     string
	interval time.Duration
	lastRaw  string
}

// NewWatcher builds a Watcher for path, polling every interval. A
// non-positive interval falls back to 1 second, matching
// LoggerConfig.Other.ReloadIntervalMS's documented default.
func NewWatcher(path string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{path: path, interval: interval}
}

// Run blocks, polling until ctx is cancelled. Read errors are logged at Warn
// level through the running engine (a malformed file on disk mid-edit is
// expected transient state, not a reason to stop watching).
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Logf(context.Background(), logger.LevelWarn, "configsource: reload failed: {}", err)
		return
	}

	raw := levelName(cfg.Logger.Level)
	if raw == w.lastRaw {
		return
	}
	w.lastRaw = raw
	logger.SetLevel(cfg.Logger.Level)
	logger.Logf(context.Background(), logger.LevelInfo, "configsource: level changed to {}", raw)
}

func levelName(level int64) string {
	switch level {
	case logger.LevelDebug:
		return "debug"
	case logger.LevelInfo:
		return "info"
	case logger.LevelWarn:
		return "warn"
	case logger.LevelError:
		return "error"
	case logger.LevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("%d", level)
	}
}
