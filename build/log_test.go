package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

func newTestSubLoggers() SubLoggers {
	backend := btclog.NewBackend(&LogWriter{})

	return SubLoggers{
		"ENGN": backend.Logger("ENGN"),
		"CODC": backend.Logger("CODC"),
	}
}

// TestParseAndSetDebugLevels checks the global and per-subsystem forms of the
// debug level string.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		level     string
		expectErr bool
		expected  map[string]btclog.Level
	}{
		{
			name:  "global",
			level: "debug",
			expected: map[string]btclog.Level{
				"ENGN": btclog.LevelDebug,
				"CODC": btclog.LevelDebug,
			},
		},
		{
			name:  "global then subsystem",
			level: "warn,ENGN=trace",
			expected: map[string]btclog.Level{
				"ENGN": btclog.LevelTrace,
				"CODC": btclog.LevelWarn,
			},
		},
		{
			name:      "invalid global",
			level:     "loud",
			expectErr: true,
		},
		{
			name:      "unknown subsystem",
			level:     "XXXX=info",
			expectErr: true,
		},
		{
			name:      "malformed pair",
			level:     "info,ENGN=debug=trace",
			expectErr: true,
		},
		{
			name:      "invalid subsystem level",
			level:     "CODC=chatty",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			loggers := newTestSubLoggers()
			err := ParseAndSetDebugLevels(tc.level, loggers)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			for subsys, level := range tc.expected {
				require.Equal(t, level, loggers[subsys].Level())
			}
		})
	}
}

// TestSupportedSubsystemsSorted asserts the subsystem list is sorted.
func TestSupportedSubsystemsSorted(t *testing.T) {
	t.Parallel()

	require.Equal(
		t, []string{"CODC", "ENGN"},
		newTestSubLoggers().SupportedSubsystems(),
	)
}

// TestShutdownLoggerRequestsShutdown asserts a critical line triggers the
// shutdown callback.
func TestShutdownLoggerRequestsShutdown(t *testing.T) {
	t.Parallel()

	var called int
	logger := NewShutdownLogger(btclog.Disabled, func() { called++ })

	logger.Criticalf("invariant broken: %v", 1)
	logger.Critical("again")

	require.Equal(t, 2, called)
}

// TestFileLoggerConfigValidate covers the log file option checks.
func TestFileLoggerConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultFileLoggerConfig()
	require.NoError(t, cfg.Validate())

	cfg.Compressor = "lz4"
	require.Error(t, cfg.Validate())

	cfg = DefaultFileLoggerConfig()
	cfg.MaxLogFileSize = 0
	require.Error(t, cfg.Validate())
}

// TestRotatingLogWriter writes through a backend into the log file.
func TestRotatingLogWriter(t *testing.T) {
	t.Parallel()

	w := NewRotatingLogWriter()

	// Without a rotator writes are dropped.
	n, err := w.Write([]byte("dropped\n"))
	require.NoError(t, err)
	require.Equal(t, 8, n)

	cfg := DefaultFileLoggerConfig()
	cfg.Compressor = "lz4"
	logFile := filepath.Join(t.TempDir(), "logs", "cmdfuzz.log")
	require.Error(t, w.InitLogRotator(cfg, logFile))

	cfg.Compressor = Zstd
	require.NoError(t, w.InitLogRotator(cfg, logFile))

	logger := btclog.NewBackend(w).Logger("ENGN")
	logger.Infof("mutated %d inputs", 3)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INF] ENGN: mutated 3 inputs")
}

// TestNewCompressor checks the roll file suffix of every compressor.
func TestNewCompressor(t *testing.T) {
	t.Parallel()

	_, suffix, err := newCompressor(Gzip)
	require.NoError(t, err)
	require.Equal(t, "gz", suffix)

	_, suffix, err = newCompressor(Zstd)
	require.NoError(t, err)
	require.Equal(t, "zst", suffix)

	_, _, err = newCompressor("lz4")
	require.ErrorContains(t, err, "unknown log compressor")
}

// TestTypeNames checks the names printed at startup.
func TestTypeNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, "development", Development.String())
	require.Equal(t, "production", Production.String())
	require.Equal(t, "unknown", DeploymentType(9).String())
	require.Equal(t, "stdout", LogTypeStdOut.String())
	require.Equal(t, "none", LogTypeNone.String())
}
