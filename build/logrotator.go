package build

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/klauspost/compress/zstd"
)

// logDirPerm is the permission of a log directory created on demand.
const logDirPerm = 0o700

// RotatingLogWriter writes log lines straight into a size-rotated log file.
// Rolled files are compressed with the configured compressor. Until
// InitLogRotator succeeds every write is discarded.
type RotatingLogWriter struct {
	rotator *rotator.Rotator
}

// NewRotatingLogWriter returns a writer with no log file behind it yet.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// newCompressor returns the rotator compressor and roll file suffix for the
// named compression algorithm.
func newCompressor(name string) (rotator.Compressor, string, error) {
	suffix, ok := logCompressors[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown log compressor: %v", name)
	}

	switch name {
	case Gzip:
		return gzip.NewWriter(nil), suffix, nil

	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, "", fmt.Errorf("zstd compressor: %w", err)
		}

		return enc, suffix, nil

	default:
		return nil, "", fmt.Errorf("no compressor for %v", name)
	}
}

// InitLogRotator opens logFile, creating its directory when missing, and
// routes every later write into it. Roll files land next to logFile. The
// caller closes the writer on shutdown.
func (r *RotatingLogWriter) InitLogRotator(cfg *FileLoggerConfig,
	logFile string) error {

	compressor, suffix, err := newCompressor(cfg.Compressor)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(logFile), logDirPerm); err != nil {
		return fmt.Errorf("log directory: %w", err)
	}

	thresholdKB := int64(cfg.MaxLogFileSize) * 1024
	rot, err := rotator.New(logFile, thresholdKB, false, cfg.MaxLogFiles)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logFile, err)
	}
	rot.SetCompressor(compressor, suffix)

	r.rotator = rot

	return nil
}

// Write appends b to the log file. The btclog backend serializes calls, so
// the rotator never sees concurrent writes.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.rotator == nil {
		return len(b), nil
	}

	return r.rotator.Write(b)
}

// Close flushes and closes the log file, if one is open.
func (r *RotatingLogWriter) Close() error {
	if r.rotator == nil {
		return nil
	}

	return r.rotator.Close()
}
