package quick

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/lixenwraith/logengine"
)

// config parses "key=value" strings into a LoggerConfig, where key is a
// dotted path matching the nested mapstructure tags of LoggerConfig
// (e.g. "logger.level=debug", "sink.file.log_path=/var/log/app.log").
// Starts from logger.DefaultConfig() so unspecified fields keep their
// documented defaults, generalizing the teacher's flat setValue
// reflection to the widened, nested config shape.
func config(args ...string) (*logger.LoggerConfig, error) {
	cfg := logger.DefaultConfig()
	for _, arg := range args {
		key, value, err := parseKeyValue(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid config format: %s", arg)
		}
		if err := setValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}
	return cfg, nil
}

// parseKeyValue splits a configuration string into key and value parts.
func parseKeyValue(arg string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(arg), "=", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid format")
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// setValue walks cfg's nested structs following the dotted path in key
// (matched against each level's "mapstructure" tag, case-insensitively),
// then converts value to the leaf field's type.
func setValue(cfg *logger.LoggerConfig, key, value string) error {
	segments := strings.Split(strings.ToLower(key), ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, seg := range segments {
		f, found := fieldByTag(v, seg)
		if !found {
			return fmt.Errorf("unknown config key: %s", key)
		}
		if i == len(segments)-1 {
			return setLeaf(f, key, value)
		}
		if f.Kind() != reflect.Struct {
			return fmt.Errorf("config key %s: %s is not a section", key, seg)
		}
		v = f
	}
	return fmt.Errorf("unknown config key: %s", key)
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Tag.Get("mapstructure"), tag) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setLeaf(f reflect.Value, key, value string) error {
	switch f.Kind() {
	case reflect.Int64, reflect.Int:
		if strings.HasSuffix(strings.ToLower(key), "level") {
			level, err := parseLevel(value)
			if err != nil {
				return err
			}
			f.SetInt(level)
			return nil
		}
		val, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		f.SetInt(val)
	case reflect.String:
		f.SetString(value)
	case reflect.Bool:
		val, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value for %s: %s", key, value)
		}
		f.SetBool(val)
	case reflect.Ptr:
		if f.Type().Elem().Kind() != reflect.Bool {
			return fmt.Errorf("unsupported config type for %s", key)
		}
		val, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value for %s: %s", key, value)
		}
		f.Set(reflect.ValueOf(&val))
	default:
		return fmt.Errorf("unsupported config type for %s", key)
	}
	return nil
}

// parseLevel converts a level string to its numeric LevelXxx constant.
func parseLevel(level string) (int64, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug, nil
	case "info":
		return logger.LevelInfo, nil
	case "warn":
		return logger.LevelWarn, nil
	case "error":
		return logger.LevelError, nil
	case "fatal":
		return logger.LevelFatal, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", level)
	}
}
