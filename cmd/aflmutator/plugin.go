// Command aflmutator builds the AFL++ custom mutator library of cmdfuzz:
//
//	go build -buildmode=c-shared -o cmdfuzz-mutator.so ./cmd/aflmutator
//	AFL_CUSTOM_MUTATOR_LIBRARY=./cmdfuzz-mutator.so \
//		AFL_CUSTOM_MUTATOR_ONLY=1 afl-fuzz ...
//
// The grammar is picked through the environment of the fuzzing host:
// CMDFUZZ_GRAMMAR names a YAML grammar file, CMDFUZZ_TARGET a built-in
// grammar. CMDFUZZ_DEBUGLEVEL sets the log level of the messages written to
// stderr.
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/cmdfuzz/cmdfuzz/afl"
	"github.com/cmdfuzz/cmdfuzz/build"
	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/cmdfuzz/cmdfuzz/engine"
	"github.com/cmdfuzz/cmdfuzz/fuzzcfg"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/mutate"
)

const (
	envGrammar    = "CMDFUZZ_GRAMMAR"
	envTarget     = "CMDFUZZ_TARGET"
	envDebugLevel = "CMDFUZZ_DEBUGLEVEL"

	defaultDebugLevel = "warn"
)

var log = btclog.Disabled

// plugin owns the adapter behind the exported entry points.
type plugin struct {
	adapter *afl.Adapter
}

// setupLogging sends the log of every subsystem to stderr, the host owns
// stdout.
func setupLogging(level string) error {
	backend := btclog.NewBackend(os.Stderr)

	log = backend.Logger("AFLM")
	subLoggers := build.SubLoggers{
		"AFLM":           log,
		afl.Subsystem:    backend.Logger(afl.Subsystem),
		codec.Subsystem:  backend.Logger(codec.Subsystem),
		engine.Subsystem: backend.Logger(engine.Subsystem),
		mutate.Subsystem: backend.Logger(mutate.Subsystem),
	}
	afl.UseLogger(subLoggers[afl.Subsystem])
	codec.UseLogger(subLoggers[codec.Subsystem])
	engine.UseLogger(subLoggers[engine.Subsystem])
	mutate.UseLogger(subLoggers[mutate.Subsystem])

	if level == "" {
		level = defaultDebugLevel
	}

	return build.ParseAndSetDebugLevels(level, subLoggers)
}

// loadGrammar returns the grammar selected through getenv.
func loadGrammar(getenv func(string) string) (*grammar.Grammar, error) {
	target := fuzzcfg.DefaultTarget()
	if name := getenv(envTarget); name != "" {
		target.Builtin = name
	}
	target.GrammarFile = getenv(envGrammar)

	return target.Load()
}

// newPlugin configures logging and loads the grammar from getenv.
func newPlugin(getenv func(string) string) (*plugin, error) {
	if err := setupLogging(getenv(envDebugLevel)); err != nil {
		return nil, fmt.Errorf("%s: %w", envDebugLevel, err)
	}

	g, err := loadGrammar(getenv)
	if err != nil {
		return nil, err
	}

	log.Infof("Loaded grammar %q with %d commands", g.Name, g.Table.Len())

	return &plugin{
		adapter: afl.New(afl.Config{
			Grammar: g,
		}),
	}, nil
}

// start opens a session for the host. The host context is kept as is and
// never dereferenced.
func (p *plugin) start(host afl.HostContext,
	seed uint32) (afl.Handle, error) {

	h, err := p.adapter.Init(host, seed)
	if err != nil {
		return 0, err
	}

	log.Debugf("Started session %d for host %#x", h, uint64(host))

	return h, nil
}

// fuzz mutates buf. A zero length result tells the host to discard the
// input.
func (p *plugin) fuzz(h afl.Handle, buf []byte, maxSize int) []byte {
	out, err := p.adapter.Fuzz(h, buf)
	switch {
	case err != nil:
		log.Errorf("Unable to mutate input of %d bytes: %v", len(buf),
			err)
		return nil

	case len(out) > maxSize:
		log.Debugf("Discarding mutation of %d bytes, host limit is %d",
			len(out), maxSize)
		return nil
	}

	return out
}

// postProcess synthesizes buf. A zero length result tells the host to skip
// the execution.
func (p *plugin) postProcess(h afl.Handle, buf []byte) []byte {
	out, err := p.adapter.PostProcess(h, buf)
	if err != nil {
		log.Errorf("Unable to synthesize input of %d bytes: %v",
			len(buf), err)
		return nil
	}

	return out
}

func main() {}
