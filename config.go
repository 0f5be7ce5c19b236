// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2020 The Lightning Network Developers

package cmdfuzz

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmdfuzz/cmdfuzz/build"
	"github.com/cmdfuzz/cmdfuzz/fuzzcfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "cmdfuzz.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "cmdfuzz.log"
	defaultLogLevel       = "info"
	defaultOutputDirname  = "out"

	defaultIterations    = 1000
	defaultStatsInterval = time.Minute
)

var (
	// DefaultCmdfuzzDir is the default directory where cmdfuzz keeps its
	// configuration, logs and results.
	DefaultCmdfuzzDir = CleanAndExpandPath("~/.cmdfuzz")

	// DefaultConfigFile is the default full path of the config file.
	DefaultConfigFile = filepath.Join(
		DefaultCmdfuzzDir, defaultConfigFilename,
	)

	defaultLogDir    = filepath.Join(DefaultCmdfuzzDir, defaultLogDirname)
	defaultOutputDir = filepath.Join(DefaultCmdfuzzDir, defaultOutputDirname)
)

// Config defines the configuration options of the batch runner.
//
// See DefaultConfig for the defaults.
//
//nolint:ll
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	CmdfuzzDir string `long:"cmdfuzzdir" description:"The base directory that contains the config file, logs and, by default, the outputs."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir     string `long:"logdir" description:"Directory to log output."`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical, off} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	InputDir   string `short:"i" long:"inputdir" description:"Directory of seed inputs in interchange form. An empty directory starts from the grammar's seed input."`
	OutputDir  string `short:"o" long:"outputdir" description:"Directory the mutated inputs are written to."`
	Seed       uint32 `long:"seed" description:"Seed of the mutation engine. Runs with the same seed and inputs produce the same outputs."`
	Iterations int    `short:"n" long:"iterations" description:"Number of mutations to perform."`
	Synthesize bool   `long:"synthesize" description:"Also write the synthesized program input of every output."`

	StatsInterval time.Duration `long:"statsinterval" description:"Interval between progress log lines."`

	LogConfig *build.FileLoggerConfig `group:"logging" namespace:"logging"`

	Mutation *fuzzcfg.Mutation `group:"mutation" namespace:"mutation"`

	Target *fuzzcfg.Target `group:"target" namespace:"target"`

	Prometheus *fuzzcfg.Prometheus `group:"prometheus" namespace:"prometheus"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		CmdfuzzDir:    DefaultCmdfuzzDir,
		ConfigFile:    DefaultConfigFile,
		LogDir:        defaultLogDir,
		DebugLevel:    defaultLogLevel,
		OutputDir:     defaultOutputDir,
		Iterations:    defaultIterations,
		StatsInterval: defaultStatsInterval,
		LogConfig:     build.DefaultFileLoggerConfig(),
		Mutation:      fuzzcfg.DefaultMutation(),
		Target:        fuzzcfg.DefaultTarget(),
		Prometheus:    fuzzcfg.DefaultPrometheus(),
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version(),
			"commit="+build.Commit)
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their cmdfuzzdir, then we should assume they intend to use
	// the config file within it.
	configFileDir := CleanAndExpandPath(preCfg.CmdfuzzDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultCmdfuzzDir &&
		configFilePath == DefaultConfigFile {

		configFilePath = filepath.Join(
			configFileDir, defaultConfigFilename,
		)
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg, usageMessage)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		cfzdLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set. All file system paths are
// normalized. The log rotator is started and the debug levels are applied.
// The cleaned up config is returned on success.
func ValidateConfig(cfg Config, usageMessage string) (*Config, error) {
	// If the provided cmdfuzz directory is not the default, we'll modify
	// the path to all of the files and directories that will live within
	// it.
	cmdfuzzDir := CleanAndExpandPath(cfg.CmdfuzzDir)
	if cmdfuzzDir != DefaultCmdfuzzDir {
		if cfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cmdfuzzDir, defaultLogDirname)
		}
		if cfg.OutputDir == defaultOutputDir {
			cfg.OutputDir = filepath.Join(
				cmdfuzzDir, defaultOutputDirname,
			)
		}
	}

	funcName := "ValidateConfig"
	mkErr := func(format string, args ...interface{}) error {
		return fmt.Errorf(funcName+": "+format, args...)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", SupportedSubsystems())
		os.Exit(0)
	}

	// As soon as we're done parsing configuration options, ensure all
	// paths to directories and files are cleaned and expanded before
	// attempting to use them later on.
	cfg.CmdfuzzDir = cmdfuzzDir
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)
	cfg.InputDir = CleanAndExpandPath(cfg.InputDir)
	cfg.OutputDir = CleanAndExpandPath(cfg.OutputDir)
	cfg.Target.GrammarFile = CleanAndExpandPath(cfg.Target.GrammarFile)

	switch {
	case cfg.InputDir == "":
		return nil, mkErr("an input directory must be set. %v",
			usageMessage)

	case cfg.InputDir == cfg.OutputDir:
		return nil, mkErr("input and output directory must differ, "+
			"both are %v", cfg.InputDir)

	case cfg.Iterations <= 0:
		return nil, mkErr("iterations must be positive, got %d",
			cfg.Iterations)

	case cfg.StatsInterval <= 0:
		return nil, mkErr("statsinterval must be positive, got %v",
			cfg.StatsInterval)
	}

	err := fuzzcfg.Validate(
		cfg.LogConfig, cfg.Mutation, cfg.Target, cfg.Prometheus,
	)
	if err != nil {
		return nil, mkErr("%w", err)
	}

	// Initialize logging at the default logging level.
	if !cfg.LogConfig.Disable {
		err := logRotator.InitLogRotator(
			cfg.LogConfig, filepath.Join(cfg.LogDir, defaultLogFilename),
		)
		if err != nil {
			return nil, mkErr("%w", err)
		}
	}

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, subsystemLoggers)
	if err != nil {
		return nil, mkErr("%w. %v", err, usageMessage)
	}

	return &cfg, nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
