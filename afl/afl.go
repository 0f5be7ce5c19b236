// Package afl adapts the mutation engine to the custom mutator interface of
// AFL++: init, fuzz, post_process and deinit. Engine state lives behind
// opaque handles owned by the Adapter.
package afl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/cmdfuzz/cmdfuzz/engine"
	"github.com/cmdfuzz/cmdfuzz/fuzzutil"
	"github.com/cmdfuzz/cmdfuzz/grammar"
)

// ErrUnknownHandle is returned for handles that were never issued or were
// already released.
var ErrUnknownHandle = errors.New("unknown mutator handle")

// HostContext is the fuzzing host's own state token. It is stored and handed
// back but never inspected.
type HostContext uint64

// Handle identifies one engine session of an Adapter.
type Handle uint64

// Config configures an Adapter.
type Config struct {
	// Grammar is the grammar every session mutates against.
	Grammar *grammar.Grammar

	// NewEngineConfig returns the engine config of a new session. When
	// nil, engine.DefaultConfig is used.
	NewEngineConfig func(g *grammar.Grammar, seed uint64) *engine.Config
}

// session is the state behind one handle.
type session struct {
	host   HostContext
	engine *engine.Engine
}

// Adapter serves the four mutator entry points. Calls for distinct handles
// may run concurrently, calls for one handle must be serialized by the
// caller, as the host does.
type Adapter struct {
	cfg   Config
	codec *codec.Codec

	mu       sync.Mutex
	sessions map[Handle]*session
	next     Handle
}

// New returns an adapter for cfg.
func New(cfg Config) *Adapter {
	if cfg.NewEngineConfig == nil {
		cfg.NewEngineConfig = engine.DefaultConfig
	}

	return &Adapter{
		cfg:      cfg,
		codec:    codec.New(cfg.Grammar),
		sessions: make(map[Handle]*session),
		next:     1,
	}
}

// Init creates a session seeded with seed and returns its handle.
func (a *Adapter) Init(host HostContext, seed uint32) (Handle, error) {
	e, err := engine.New(a.cfg.NewEngineConfig(a.cfg.Grammar, uint64(seed)))
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	h := a.next
	a.next++
	a.sessions[h] = &session{
		host:   host,
		engine: e,
	}
	a.mu.Unlock()

	log.Infof("Initialized mutator session %d for grammar %q, seed=%d",
		h, a.cfg.Grammar.Name, seed)

	return h, nil
}

// Host returns the host context the session was created with.
func (a *Adapter) Host(h Handle) (HostContext, error) {
	s, err := a.session(h)
	if err != nil {
		return 0, err
	}

	return s.host, nil
}

// Fuzz decodes buf, applies one mutation and returns the new encoding. The
// returned slice aliases the session's scratch buffer and is only valid
// until the next Fuzz call on the same handle. A malformed buf yields a
// *codec.DecodeError and no mutation.
func (a *Adapter) Fuzz(h Handle, buf []byte) ([]byte, error) {
	s, err := a.session(h)
	if err != nil {
		return nil, err
	}

	in, err := a.codec.DecodeBytes(buf)
	if err != nil {
		return nil, err
	}

	op := s.engine.MutateInput(in)

	log.Tracef("Session %d applied %v mutation: %v", h, op,
		engine.DumpInput(in))

	if err := a.codec.Encode(s.engine.AllocFuzzBuf(), in); err != nil {
		return nil, fmt.Errorf("encode mutated input: %w", err)
	}

	return s.engine.FuzzBuf(), nil
}

// PostProcess decodes buf, appends the exit command when the grammar has one
// and returns the synthesized form. The returned slice is only valid until
// the next PostProcess call on the same handle.
func (a *Adapter) PostProcess(h Handle, buf []byte) ([]byte, error) {
	s, err := a.session(h)
	if err != nil {
		return nil, err
	}

	in, err := a.codec.DecodeBytes(buf)
	if err != nil {
		return nil, err
	}

	a.cfg.Grammar.ExitCommand().WhenSome(func(exit grammar.Command) {
		in.Commands = append(in.Commands, exit)
	})

	out := s.engine.AllocPostBuf()
	if err := a.codec.Synthesize(out, in); err != nil {
		return nil, fmt.Errorf("synthesize input: %w", err)
	}

	log.Tracef("Session %d synthesized %d bytes: %v", h, out.Len(),
		fuzzutil.HexDumpClosure(out.Bytes(), 256))

	return s.engine.PostBuf(), nil
}

// Deinit releases the session. The handle is invalid afterwards.
func (a *Adapter) Deinit(h Handle) error {
	a.mu.Lock()
	_, ok := a.sessions[h]
	delete(a.sessions, h)
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	log.Infof("Released mutator session %d", h)

	return nil
}

// Sessions returns the number of live sessions.
func (a *Adapter) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.sessions)
}

func (a *Adapter) session(h Handle) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	return s, nil
}
