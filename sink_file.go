package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// RotatePolicy selects when the FileSink rotates its active file, per
// spec.md §4.5.2.
type RotatePolicy int

const (
	RotateNone RotatePolicy = iota
	RotateSize
	RotateDaily
)

const fileWriteThreshold = 32 * 1024

// FileSink owns an append-mode file with an explicit internal write buffer,
// and rotates/retains rotated files per spec.md §4.5.2. Rotation only ever
// happens on the worker goroutine; ApplyConfig is the one path another
// goroutine may call, so currentSize and the policy fields are guarded by
// mu for that rare path (spec.md §5).
type FileSink struct {
	mu sync.Mutex

	basePath string
	file     *os.File
	w        *bufio.Writer

	currentSize int64
	policy      RotatePolicy
	rotateBytes int64

	nextMidnight time.Time

	rotated        []string // oldest first
	maxRotateFiles int

	// seenRotated short-circuits the os.Stat call in nextRotatedName for
	// suffixes already known to be taken, keyed by xxhash.Sum64String of
	// the candidate path. Entries are dropped on deletion (enforceRetention/
	// enforceDiskSpace) so a freed suffix can be reused.
	seenRotated map[uint64]struct{}

	rotations atomic.Uint64

	tc *timeCache

	openFailed bool

	// Supplemental disk-space-aware retention (SPEC_FULL.md §10), layered
	// on top of the normative max_rotate_files count-based retention.
	maxTotalSizeMB int64
	minDiskFreeMB  int64
	diskFullLogged bool
}

// FileSinkConfig configures a new FileSink.
type FileSinkConfig struct {
	Path            string
	BufferSizeBytes int
	Policy          RotatePolicy
	RotateSizeMB    int64
	MaxRotateFiles  int
	MaxTotalSizeMB  int64
	MinDiskFreeMB   int64
	TimeFormat      string
}

// NewFileSink opens (or creates) the active log file and, for RotateDaily,
// precomputes the next midnight timestamp.
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, errors.Wrap(ErrConfig, "file sink: empty log path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, errors.Wrap(err, "file sink: create directory")
	}

	fs := &FileSink{
		basePath:       cfg.Path,
		policy:         cfg.Policy,
		rotateBytes:    cfg.RotateSizeMB * 1024 * 1024,
		maxRotateFiles: cfg.MaxRotateFiles,
		maxTotalSizeMB: cfg.MaxTotalSizeMB,
		minDiskFreeMB:  cfg.MinDiskFreeMB,
		tc:             newTimeCache(cfg.TimeFormat),
	}

	bufSize := cfg.BufferSizeBytes
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}

	if err := fs.openActive(bufSize); err != nil {
		fs.openFailed = true
		return nil, errors.Wrap(err, "file sink: open active file")
	}

	if cfg.Policy == RotateDaily {
		fs.nextMidnight = nextMidnight(time.Now())
	}

	fs.rotated = existingRotatedFiles(cfg.Path)
	fs.seenRotated = make(map[uint64]struct{}, len(fs.rotated))
	for _, r := range fs.rotated {
		fs.seenRotated[xxhash.Sum64String(r)] = struct{}{}
	}
	return fs, nil
}

func (fs *FileSink) Name() string { return "file" }

func (fs *FileSink) openActive(bufSize int) error {
	f, err := os.OpenFile(fs.basePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fi, statErr := f.Stat()
	if statErr == nil {
		fs.currentSize = fi.Size()
	}
	fs.file = f
	fs.w = bufio.NewWriterSize(f, bufSize)
	return nil
}

func (fs *FileSink) Log(r *Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.writeLocked(r)
}

func (fs *FileSink) LogBatch(rs []*Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, r := range rs {
		if err := fs.writeLocked(r); err != nil {
			return err
		}
	}
	return fs.w.Flush()
}

func (fs *FileSink) writeLocked(r *Record) error {
	if fs.openFailed {
		// Failure semantics per spec.md §7: while the active file cannot be
		// opened, each write retries the open and is dropped if it fails.
		if err := fs.openActive(64 * 1024); err != nil {
			return nil
		}
		fs.openFailed = false
	}

	if fs.needsRotation() {
		if err := fs.rotate(); err != nil {
			diag("file sink: rotation failed: %v", err)
			// Data already written to the current file is not lost; keep
			// the active file open and continue, per spec.md §4.5.2.
		}
	}

	header := make([]byte, 0, 128+r.Buf.Len())
	header = formatHeader(header, fs.tc, r)

	n, err := fs.w.Write(header)
	fs.currentSize += int64(n)
	if err != nil {
		return wrapSinkErr(fs.Name(), err)
	}

	if fs.w.Buffered() >= fileWriteThreshold {
		if err := fs.w.Flush(); err != nil {
			return wrapSinkErr(fs.Name(), err)
		}
	}
	return nil
}

func (fs *FileSink) needsRotation() bool {
	switch fs.policy {
	case RotateSize:
		return fs.rotateBytes > 0 && fs.currentSize >= fs.rotateBytes
	case RotateDaily:
		return !fs.nextMidnight.IsZero() && time.Now().After(fs.nextMidnight)
	default:
		return false
	}
}

// rotate implements spec.md §4.5.2's five-step procedure.
func (fs *FileSink) rotate() error {
	if err := fs.w.Flush(); err != nil {
		return errors.Wrap(err, "flush before rotate")
	}
	if err := fs.file.Sync(); err != nil {
		return errors.Wrap(err, "sync before rotate")
	}
	if err := fs.file.Close(); err != nil {
		return errors.Wrap(err, "close before rotate")
	}

	rotatedName, err := fs.nextRotatedName()
	if err != nil {
		return err
	}

	if err := os.Rename(fs.basePath, rotatedName); err != nil {
		// Reopen the still-existing base path so no data is lost even if
		// the rename failed, per spec.md §4.5.2's failure semantics.
		_ = fs.openActive(64 * 1024)
		return errors.Wrap(ErrRotateFail, err.Error())
	}

	if err := fs.openActive(64 * 1024); err != nil {
		return errors.Wrap(err, "reopen base path")
	}
	fs.currentSize = 0

	fs.rotated = append(fs.rotated, rotatedName)
	fs.seenRotated[xxhash.Sum64String(rotatedName)] = struct{}{}
	fs.rotations.Add(1)
	if fs.policy == RotateDaily {
		fs.nextMidnight = nextMidnight(time.Now())
	}

	fs.enforceRetention()
	fs.enforceDiskSpace()
	return nil
}

// RotationCount returns the number of times this sink has rotated its
// active file since construction, for metrics.go's Collector.
func (fs *FileSink) RotationCount() uint64 { return fs.rotations.Load() }

// nextRotatedName computes the rotated path per spec.md §6's persisted
// state layout. seenRotated pre-checks each candidate's hash before
// falling to os.Stat, so a rotation that has already walked past low
// suffixes once never re-stats names it already knows are taken.
func (fs *FileSink) nextRotatedName() (string, error) {
	if fs.policy == RotateDaily {
		return fs.basePath + time.Now().Format("2006-01-02"), nil
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", fs.basePath, n)
		h := xxhash.Sum64String(candidate)
		if _, known := fs.seenRotated[h]; known {
			continue
		}
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		fs.seenRotated[h] = struct{}{}
		if n > 1_000_000 {
			return "", errors.New("file sink: exhausted rotation suffixes")
		}
	}
}

// enforceRetention keeps at most maxRotateFiles rotated files, per
// spec.md §8 property 4. maxRotateFiles == 0 deletes every rotation
// immediately.
func (fs *FileSink) enforceRetention() {
	for len(fs.rotated) > fs.maxRotateFiles {
		victim := fs.rotated[0]
		fs.rotated = fs.rotated[1:]
		delete(fs.seenRotated, xxhash.Sum64String(victim))
		if err := os.Remove(victim); err != nil && !os.IsNotExist(err) {
			diag("file sink: retention cleanup failed for %s: %v", victim, err)
		}
	}
}

// enforceDiskSpace is the SUPPLEMENTED disk-space-aware retention axis
// (SPEC_FULL.md §10): it deletes additional oldest rotated files if the
// directory exceeds MaxTotalSizeMB or free disk space falls under
// MinDiskFreeMB, independent of the count-based max_rotate_files bound.
func (fs *FileSink) enforceDiskSpace() {
	if fs.maxTotalSizeMB == 0 && fs.minDiskFreeMB == 0 {
		return
	}
	dir := filepath.Dir(fs.basePath)

	free, err := getDiskFreeSpace(dir)
	if err != nil {
		return
	}
	dirSize, err := dirSizeOf(dir)
	if err != nil {
		return
	}

	minFree := fs.minDiskFreeMB * 1024 * 1024
	maxTotal := fs.maxTotalSizeMB * 1024 * 1024

	needsCleanup := free < minFree || (maxTotal > 0 && dirSize > maxTotal)
	if !needsCleanup {
		fs.diskFullLogged = false
		return
	}

	for len(fs.rotated) > 0 && (free < minFree || (maxTotal > 0 && dirSize > maxTotal)) {
		victim := fs.rotated[0]
		fi, statErr := os.Stat(victim)
		if err := os.Remove(victim); err != nil && !os.IsNotExist(err) {
			break
		}
		fs.rotated = fs.rotated[1:]
		delete(fs.seenRotated, xxhash.Sum64String(victim))
		if statErr == nil {
			dirSize -= fi.Size()
			free += fi.Size()
		}
	}

	if len(fs.rotated) == 0 && !fs.diskFullLogged {
		fs.diskFullLogged = true
		diag("file sink: disk space retention exhausted rotated files, still over limit")
	}
}

func (fs *FileSink) Flush() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return nil
	}
	return wrapSinkErr(fs.Name(), fs.w.Flush())
}

func (fs *FileSink) Sync() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return nil
	}
	if err := fs.w.Flush(); err != nil {
		return wrapSinkErr(fs.Name(), err)
	}
	return wrapSinkErr(fs.Name(), fs.file.Sync())
}

func (fs *FileSink) ApplyConfig(cfg SinkConfig) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.policy = cfg.RotatePolicy
	fs.rotateBytes = cfg.RotateSizeMB * 1024 * 1024
	fs.maxRotateFiles = cfg.MaxRotateFiles
	if cfg.TimeFormat != "" {
		fs.tc = newTimeCache(cfg.TimeFormat)
	}
	if cfg.LogPath != "" && cfg.LogPath != fs.basePath {
		if fs.file != nil {
			_ = fs.w.Flush()
			_ = fs.file.Close()
		}
		fs.basePath = cfg.LogPath
		fs.openFailed = false
		if err := fs.openActive(64 * 1024); err != nil {
			fs.openFailed = true
			return errors.Wrap(err, "file sink: reopen on apply config")
		}
		fs.rotated = existingRotatedFiles(fs.basePath)
		fs.seenRotated = make(map[uint64]struct{}, len(fs.rotated))
		for _, r := range fs.rotated {
			fs.seenRotated[xxhash.Sum64String(r)] = struct{}{}
		}
	}
	return nil
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// existingRotatedFiles scans basePath's directory for files whose name
// starts with the base name (any such file, which covers both rotated-name
// schemes), oldest first, so retention accounts for files left over from a
// previous process.
func existingRotatedFiles(basePath string) []string {
	dir := filepath.Dir(basePath)
	baseName := filepath.Base(basePath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var found []candidate
	for _, e := range entries {
		name := e.Name()
		if name == baseName || name == "" {
			continue
		}
		if len(name) <= len(baseName) || name[:len(baseName)] != baseName {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].modTime.Before(found[j].modTime) })

	out := make([]string, 0, len(found))
	for _, c := range found {
		out = append(out, c.path)
	}
	return out
}

// getDiskFreeSpace reports available bytes on the filesystem backing dir.
func getDiskFreeSpace(dir string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// dirSizeOf sums the size of every regular file directly inside dir.
func dirSizeOf(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var size int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.IsDir() {
			continue
		}
		size += info.Size()
	}
	return size, nil
}
