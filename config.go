package logger

import (
	"time"

	"github.com/pkg/errors"
)

// LoggerConfig is the load-time configuration contract, following the
// teacher's config.go in shape (a flat struct with json/toml-style tags,
// merged against defaults field by field) but widened to spec.md §6's
// full enumerated option set. A sibling configsource package (see
// configsource/configsource.go) uses viper to populate one of these from
// a TOML file and to drive the level-only hot reload poller spec.md §9
// describes.
type LoggerConfig struct {
	Logger LoggerSection `json:"logger" mapstructure:"logger"`
	Sink   SinkSection   `json:"sink" mapstructure:"sink"`
	Other  OtherSection  `json:"other" mapstructure:"other"`
}

// LoggerSection is the `logger.*` namespace of spec.md §6.
type LoggerSection struct {
	Level       int64              `json:"level" mapstructure:"level"`
	FullPolicy  string             `json:"full_policy" mapstructure:"full_policy"` // "Block" or "Drop"
	TimeFormat  string             `json:"time_format" mapstructure:"time_format"`
	Performance PerformanceSection `json:"performance" mapstructure:"performance"`
}

// PerformanceSection is `logger.performance.*`.
type PerformanceSection struct {
	WorkerBatchSize     int   `json:"worker_batch_size" mapstructure:"worker_batch_size"`
	QueueCapacity       int   `json:"queue_capacity" mapstructure:"queue_capacity"`
	QueueBlockTimeoutUS int64 `json:"queue_block_timeout_us" mapstructure:"queue_block_timeout_us"`
	BufferPoolSize      int   `json:"buffer_pool_size" mapstructure:"buffer_pool_size"`
	TLSBufferCount      int   `json:"tls_buffer_count" mapstructure:"tls_buffer_count"`
}

// SinkSection groups the three sink namespaces, `sink.file.*`,
// `sink.console.*`, and the supplemented `sink.http.*` (spec.md §4.5.3
// pins only the batch policy; the endpoint/batch/retry fields live here
// so the http sink is configurable the same way the other two are).
type SinkSection struct {
	File    FileSinkSection    `json:"file" mapstructure:"file"`
	Console ConsoleSinkSection `json:"console" mapstructure:"console"`
	Http    HTTPSinkSection    `json:"http" mapstructure:"http"`
}

// FileSinkSection is `sink.file.*`, including the supplemented
// disk-space-aware retention fields from SPEC_FULL.md §10.
type FileSinkSection struct {
	FileBufferSizeKB int    `json:"file_buffer_size_kb" mapstructure:"file_buffer_size_kb"`
	LogPath          string `json:"log_path" mapstructure:"log_path"`          // empty disables the file sink
	RotatePolicy     string `json:"rotate_policy" mapstructure:"rotate_policy"` // None, Daily, Size
	RotateSizeMB     int64  `json:"rotate_size_mb" mapstructure:"rotate_size_mb"`
	MaxRotateFiles   int    `json:"max_rotate_files" mapstructure:"max_rotate_files"`
	MaxTotalSizeMB   int64  `json:"max_total_size_mb" mapstructure:"max_total_size_mb"`
	MinDiskFreeMB    int64  `json:"min_disk_free_mb" mapstructure:"min_disk_free_mb"`
}

// ConsoleSinkSection is `sink.console.*`. Enabled is a *bool rather than a
// bool: a plain bool's zero value (false) is indistinguishable from "the
// caller never set this field", which would make a raw &LoggerConfig{}
// literal silently disable the console sink despite its documented
// default of true. nil means unset (mergeConfig applies the default);
// a non-nil pointer, true or false, is always authoritative.
type ConsoleSinkSection struct {
	Enabled             *bool `json:"enabled" mapstructure:"enabled"`
	ConsoleBufferSizeKB int   `json:"console_buffer_size_kb" mapstructure:"console_buffer_size_kb"`
	Color               bool  `json:"color" mapstructure:"color"`
}

// HTTPSinkSection is the supplemented `sink.http.*` namespace backing the
// HTTPSink's batch/retry policy (spec.md §4.5.3). Enabled is *bool for the
// same reason as ConsoleSinkSection.Enabled.
type HTTPSinkSection struct {
	Enabled    *bool  `json:"enabled" mapstructure:"enabled"`
	Endpoint   string `json:"endpoint" mapstructure:"endpoint"`
	BatchSize  int    `json:"batch_size" mapstructure:"batch_size"`
	MaxRetries int    `json:"max_retries" mapstructure:"max_retries"`
	TimeoutMS  int64  `json:"timeout_ms" mapstructure:"timeout_ms"`
}

// OtherSection is `other.*`.
type OtherSection struct {
	ReloadIntervalMS int64 `json:"reload_interval_ms" mapstructure:"reload_interval_ms"`
}

// DefaultConfig returns spec.md §6's documented defaults: Info level,
// Block backpressure, a 2048-record worker batch, a 65536-buffer pool, a
// 64-buffer producer cache refill, and the file sink disabled (empty
// LogPath) until the caller names a path.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Logger: LoggerSection{
			Level:      LevelInfo,
			FullPolicy: "Block",
			TimeFormat: "2006-01-02T15:04:05",
			Performance: PerformanceSection{
				WorkerBatchSize:     2048,
				QueueCapacity:       8192,
				QueueBlockTimeoutUS: 1_000_000,
				BufferPoolSize:      65536,
				TLSBufferCount:      64,
			},
		},
		Sink: SinkSection{
			File: FileSinkSection{
				FileBufferSizeKB: 64,
				RotatePolicy:     "None",
				RotateSizeMB:     100,
				MaxRotateFiles:   7,
			},
			Console: ConsoleSinkSection{
				Enabled:             boolPtr(true),
				ConsoleBufferSizeKB: 8,
				Color:               true,
			},
			Http: HTTPSinkSection{
				Enabled:    boolPtr(false),
				BatchSize:  100,
				MaxRetries: 3,
				TimeoutMS:  10_000,
			},
		},
		Other: OtherSection{
			ReloadIntervalMS: 1000,
		},
	}
}

// mergeConfig fills zero-valued fields of cfg from defaults, field by
// field, following the teacher's getConfigValue generic merge idiom.
// QueueCapacity, QueueBlockTimeoutUS and MaxRotateFiles are intentionally
// excluded: an explicit zero (no capacity bound, no retained rotations) or
// negative (no timeout) value is meaningful and must not be overwritten by
// a default. Console.Color and Http.MaxRetries are not merged either, so a
// zero value there means no colour and no retries.
func mergeConfig(cfg *LoggerConfig) *LoggerConfig {
	d := DefaultConfig()
	if cfg == nil {
		return d
	}
	out := *cfg
	out.Logger.FullPolicy = getConfigValue(d.Logger.FullPolicy, cfg.Logger.FullPolicy)
	out.Logger.TimeFormat = getConfigValue(d.Logger.TimeFormat, cfg.Logger.TimeFormat)

	p := &out.Logger.Performance
	p.WorkerBatchSize = getConfigValue(d.Logger.Performance.WorkerBatchSize, cfg.Logger.Performance.WorkerBatchSize)
	p.BufferPoolSize = getConfigValue(d.Logger.Performance.BufferPoolSize, cfg.Logger.Performance.BufferPoolSize)
	p.TLSBufferCount = getConfigValue(d.Logger.Performance.TLSBufferCount, cfg.Logger.Performance.TLSBufferCount)

	f := &out.Sink.File
	f.FileBufferSizeKB = getConfigValue(d.Sink.File.FileBufferSizeKB, cfg.Sink.File.FileBufferSizeKB)
	f.RotatePolicy = getConfigValue(d.Sink.File.RotatePolicy, cfg.Sink.File.RotatePolicy)
	f.RotateSizeMB = getConfigValue(d.Sink.File.RotateSizeMB, cfg.Sink.File.RotateSizeMB)

	c := &out.Sink.Console
	c.Enabled = getBoolConfigValue(d.Sink.Console.Enabled, cfg.Sink.Console.Enabled)
	c.ConsoleBufferSizeKB = getConfigValue(d.Sink.Console.ConsoleBufferSizeKB, cfg.Sink.Console.ConsoleBufferSizeKB)

	h := &out.Sink.Http
	h.Enabled = getBoolConfigValue(d.Sink.Http.Enabled, cfg.Sink.Http.Enabled)
	h.BatchSize = getConfigValue(d.Sink.Http.BatchSize, cfg.Sink.Http.BatchSize)
	h.TimeoutMS = getConfigValue(d.Sink.Http.TimeoutMS, cfg.Sink.Http.TimeoutMS)

	out.Other.ReloadIntervalMS = getConfigValue(d.Other.ReloadIntervalMS, cfg.Other.ReloadIntervalMS)
	return &out
}

// getConfigValue returns defaultVal if cfgVal equals the zero value for
// type T, otherwise cfgVal. Ported from the teacher's config.go.
func getConfigValue[T comparable](defaultVal, cfgVal T) T {
	var zero T
	if cfgVal == zero {
		return defaultVal
	}
	return cfgVal
}

// getBoolConfigValue returns defaultVal if cfgVal is nil (the caller never
// set this field), otherwise cfgVal — even if it points to false. Enabled
// flags need this distinct from getConfigValue's zero-value convention
// because false is itself a meaningful, common explicit choice.
func getBoolConfigValue(defaultVal, cfgVal *bool) *bool {
	if cfgVal == nil {
		return defaultVal
	}
	return cfgVal
}

// boolPtr returns a pointer to b, for constructing *bool config fields.
func boolPtr(b bool) *bool { return &b }

// validateConfig enforces spec.md §6's field-level constraints. A
// failure here must leave any previously applied configuration untouched
// (spec.md §7); callers validate before swapping in new state, never
// after.
func validateConfig(cfg *LoggerConfig) error {
	switch cfg.Logger.FullPolicy {
	case "Block", "Drop":
	default:
		return errors.Wrapf(ErrConfig, "logger.full_policy: %q must be Block or Drop", cfg.Logger.FullPolicy)
	}
	if cfg.Logger.TimeFormat == "" {
		return errors.Wrap(ErrConfig, "logger.time_format: must not be empty")
	}
	if len(time.Now().Format(cfg.Logger.TimeFormat)) == 0 {
		return errors.Wrap(ErrConfig, "logger.time_format: renders to zero length")
	}
	if cfg.Logger.Performance.WorkerBatchSize <= 0 {
		return errors.Wrap(ErrConfig, "logger.performance.worker_batch_size: must be positive")
	}
	if cfg.Logger.Performance.QueueCapacity < 0 {
		return errors.Wrap(ErrConfig, "logger.performance.queue_capacity: must be non-negative")
	}
	if cfg.Logger.Performance.BufferPoolSize <= 0 {
		return errors.Wrap(ErrConfig, "logger.performance.buffer_pool_size: must be positive")
	}
	if cfg.Logger.Performance.TLSBufferCount <= 0 {
		return errors.Wrap(ErrConfig, "logger.performance.tls_buffer_count: must be positive")
	}
	if cfg.Sink.File.LogPath != "" {
		switch cfg.Sink.File.RotatePolicy {
		case "None", "Daily", "Size":
		default:
			return errors.Wrapf(ErrConfig, "sink.file.rotate_policy: %q must be None, Daily, or Size", cfg.Sink.File.RotatePolicy)
		}
		if cfg.Sink.File.RotatePolicy == "Size" && cfg.Sink.File.RotateSizeMB <= 0 {
			return errors.Wrap(ErrConfig, "sink.file.rotate_size_mb: must be positive under Size policy")
		}
		if cfg.Sink.File.MaxRotateFiles < 0 {
			return errors.Wrap(ErrConfig, "sink.file.max_rotate_files: must be non-negative")
		}
		if cfg.Sink.File.FileBufferSizeKB <= 0 {
			return errors.Wrap(ErrConfig, "sink.file.file_buffer_size_kb: must be positive")
		}
	}
	if boolValue(cfg.Sink.Console.Enabled) && cfg.Sink.Console.ConsoleBufferSizeKB <= 0 {
		return errors.Wrap(ErrConfig, "sink.console.console_buffer_size_kb: must be positive")
	}
	if boolValue(cfg.Sink.Http.Enabled) && cfg.Sink.Http.Endpoint == "" {
		return errors.Wrap(ErrConfig, "sink.http.endpoint: required when sink.http.enabled is true")
	}
	if cfg.Other.ReloadIntervalMS < 0 {
		return errors.Wrap(ErrConfig, "other.reload_interval_ms: must be non-negative")
	}
	return nil
}

// boolValue dereferences a *bool config field, treating nil (unset) as
// false. By the time validateConfig runs on a merged config this is never
// nil; direct callers that skip mergeConfig get the conservative default.
func boolValue(b *bool) bool {
	return b != nil && *b
}

func rotatePolicyFromString(s string) RotatePolicy {
	switch s {
	case "Daily":
		return RotateDaily
	case "Size":
		return RotateSize
	default:
		return RotateNone
	}
}
