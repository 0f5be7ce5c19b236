package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cmdfuzz/cmdfuzz/afl"
	"github.com/cmdfuzz/cmdfuzz/babynotes"
	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/stretchr/testify/require"
)

// envOf returns a getenv over a fixed environment.
func envOf(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// TestLoadGrammar checks the grammar selection through the environment.
func TestLoadGrammar(t *testing.T) {
	g, err := loadGrammar(envOf(nil))
	require.NoError(t, err)
	require.Equal(t, babynotes.HeaderName, g.Name)

	g, err = loadGrammar(envOf(map[string]string{
		envTarget: babynotes.Name,
	}))
	require.NoError(t, err)
	require.Equal(t, babynotes.Name, g.Name)

	_, err = loadGrammar(envOf(map[string]string{envTarget: "nope"}))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: tiny\ncommands: [{opcode: 3}]\n",
	), 0o600))

	g, err = loadGrammar(envOf(map[string]string{envGrammar: path}))
	require.NoError(t, err)
	require.Equal(t, "tiny", g.Name)
}

// TestNewPluginRejectsDebugLevel asserts a bad level fails the setup.
func TestNewPluginRejectsDebugLevel(t *testing.T) {
	_, err := newPlugin(envOf(map[string]string{envDebugLevel: "loud"}))
	require.ErrorContains(t, err, envDebugLevel)
}

// TestPluginSession drives one session through the plugin entry points.
func TestPluginSession(t *testing.T) {
	p, err := newPlugin(envOf(map[string]string{envDebugLevel: "off"}))
	require.NoError(t, err)

	const host = afl.HostContext(0x7f00deadbeef)
	h, err := p.start(host, 1)
	require.NoError(t, err)

	got, err := p.adapter.Host(h)
	require.NoError(t, err)
	require.Equal(t, host, got)

	g, _, err := babynotes.Lookup(babynotes.HeaderName)
	require.NoError(t, err)
	c := codec.New(g)

	seed, err := c.EncodeBytes(g.SeedInput())
	require.NoError(t, err)

	buf := append([]byte(nil), seed...)
	for i := 0; i < 50; i++ {
		out := p.fuzz(h, buf, 1<<20)
		require.NotEmpty(t, out)

		_, err := c.DecodeBytes(out)
		require.NoError(t, err)

		buf = append(buf[:0], out...)
	}

	require.NotEmpty(t, p.postProcess(h, buf))

	// Malformed inputs and oversized outputs are discarded.
	require.Empty(t, p.fuzz(h, []byte{1}, 1<<20))
	require.Empty(t, p.fuzz(h, seed, 1))
	require.Empty(t, p.postProcess(h, []byte{1}))

	require.NoError(t, p.adapter.Deinit(h))
	require.Empty(t, p.fuzz(h, seed, 1<<20))
}
