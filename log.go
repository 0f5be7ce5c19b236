package cmdfuzz

import (
	"github.com/btcsuite/btclog"
	"github.com/cmdfuzz/cmdfuzz/afl"
	"github.com/cmdfuzz/cmdfuzz/build"
	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/cmdfuzz/cmdfuzz/engine"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/monitoring"
	"github.com/cmdfuzz/cmdfuzz/mutate"
	"github.com/cmdfuzz/cmdfuzz/signal"
)

// Subsystem is the logging subsystem of the batch runner.
const Subsystem = "CFZD"

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it will write to the backend. When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
//
// Log lines only reach the log file once the rotator has been initialized,
// which ValidateConfig does unless the file logger is disabled.
var (
	// logRotator is the file output of the backend. It must be closed on
	// shutdown.
	logRotator = build.NewRotatingLogWriter()

	logWriter = &build.LogWriter{RotatorPipe: logRotator}

	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter)

	cfzdLog = build.NewSubLogger(Subsystem, backendLog.Logger)
	grmrLog = build.NewSubLogger(grammar.Subsystem, backendLog.Logger)
	mutrLog = build.NewSubLogger(mutate.Subsystem, backendLog.Logger)
	engnLog = build.NewSubLogger(engine.Subsystem, backendLog.Logger)
	codcLog = build.NewSubLogger(codec.Subsystem, backendLog.Logger)
	aflaLog = build.NewSubLogger(afl.Subsystem, backendLog.Logger)
	mntrLog = build.NewSubLogger(monitoring.Subsystem, backendLog.Logger)
	sgnlLog = build.NewSubLogger(signal.Subsystem, backendLog.Logger)
)

// Initialize package-global logger variables.
func init() {
	grammar.UseLogger(grmrLog)
	mutate.UseLogger(mutrLog)
	engine.UseLogger(engnLog)
	codec.UseLogger(codcLog)
	afl.UseLogger(aflaLog)
	monitoring.UseLogger(mntrLog)
	signal.UseLogger(sgnlLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = build.SubLoggers{
	Subsystem:            cfzdLog,
	grammar.Subsystem:    grmrLog,
	mutate.Subsystem:     mutrLog,
	engine.Subsystem:     engnLog,
	codec.Subsystem:      codcLog,
	afl.Subsystem:        aflaLog,
	monitoring.Subsystem: mntrLog,
	signal.Subsystem:     sgnlLog,
}

// SetupLoggers makes every critical message of the runner request a shutdown
// through the interceptor. Levels set through subsystemLoggers keep applying
// to the wrapped logger.
func SetupLoggers(interceptor signal.Interceptor) {
	cfzdLog = build.NewShutdownLogger(
		subsystemLoggers[Subsystem], interceptor.RequestShutdown,
	)
}

// SupportedSubsystems returns the names of all subsystems a log level can be
// set for.
func SupportedSubsystems() []string {
	return subsystemLoggers.SupportedSubsystems()
}
