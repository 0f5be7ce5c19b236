package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cmdfuzz/cmdfuzz/babynotes"
	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/stretchr/testify/require"
)

// runApp runs the app with the given command line.
func runApp(args ...string) error {
	return newApp().Run(append([]string{"cmdfuzzcli"}, args...))
}

// TestGenWritesSeed checks the seed file of both built-in grammars.
func TestGenWritesSeed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, name := range []string{babynotes.Name, babynotes.HeaderName} {
		path := filepath.Join(dir, name)
		require.NoError(t, runApp(
			"gen", "--target", name, "--output", path,
		))

		g, _, err := babynotes.Lookup(name)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		want, err := codec.New(g).EncodeBytes(g.SeedInput())
		require.NoError(t, err)
		require.Equal(t, want, data)
	}
}

// TestGenRefusesOverwrite asserts an existing output is left untouched.
func TestGenRefusesOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	err := runApp("gen", "--output", path)
	require.ErrorContains(t, err, "refusing to overwrite")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("keep"), data)
}

// TestSynSeed synthesizes the generated seed and re-encodes it.
func TestSynSeed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	seed := filepath.Join(dir, "seed")
	require.NoError(t, runApp("gen", "-o", seed))

	synPath := filepath.Join(dir, "seed.syn")
	require.NoError(t, runApp("syn", seed, "--output", synPath))

	data, err := os.ReadFile(synPath)
	require.NoError(t, err)

	want := strings.Repeat("\x00", babynotes.NameSize) +
		strings.Repeat("\x00", babynotes.MottoSize) + "0\n7\n7\n"
	require.Equal(t, want, string(data))

	encPath := filepath.Join(dir, "seed.bin")
	require.NoError(t, runApp(
		"syn", "--reencode", "--output", encPath, seed,
	))

	orig, err := os.ReadFile(seed)
	require.NoError(t, err)
	reenc, err := os.ReadFile(encPath)
	require.NoError(t, err)
	require.Equal(t, orig, reenc)
}

// TestSynGrammarFile uses a grammar loaded from a YAML file.
func TestSynGrammarFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	grammarPath := filepath.Join(dir, "tiny.yaml")
	require.NoError(t, os.WriteFile(grammarPath, []byte(
		"name: tiny\nexit_opcode: 9\ncommands:\n"+
			"  - opcode: 9\n",
	), 0o600))

	seed := filepath.Join(dir, "seed")
	require.NoError(t, runApp(
		"gen", "--grammar", grammarPath, "--output", seed,
	))

	out := filepath.Join(dir, "out")
	require.NoError(t, runApp(
		"syn", "--grammar", grammarPath, "--output", out, seed,
	))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "9\n9\n", string(data))
}

// TestCommandErrors covers the rejected invocations. None of them may leave
// an output file behind.
func TestCommandErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	seed := filepath.Join(dir, "seed")
	require.NoError(t, runApp("gen", "--output", seed))

	junk := filepath.Join(dir, "junk")
	require.NoError(t, os.WriteFile(junk, []byte{0, 0}, 0o600))

	out := filepath.Join(dir, "out")
	testCases := []struct {
		name string
		args []string
	}{
		{
			name: "gen without output",
			args: []string{"gen"},
		},
		{
			name: "gen unknown target",
			args: []string{"gen", "--target", "nope", "-o", out},
		},
		{
			name: "syn without input",
			args: []string{"syn", "-o", out},
		},
		{
			name: "syn without output",
			args: []string{"syn", seed},
		},
		{
			name: "syn missing input",
			args: []string{"syn", "-o", out, filepath.Join(dir, "x")},
		},
		{
			name: "syn malformed input",
			args: []string{"syn", "-o", out, junk},
		},
		{
			name: "reencode malformed input",
			args: []string{"syn", "--reencode", "-o", out, junk},
		},
		{
			name: "grammar mismatch",
			args: []string{
				"syn", "--target", babynotes.Name, "-o", out,
				seed,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, runApp(tc.args...))

			_, err := os.Stat(out)
			require.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

// TestShowSeed prints the generated seed as a table.
func TestShowSeed(t *testing.T) {
	t.Parallel()

	seed := filepath.Join(t.TempDir(), "seed")
	require.NoError(t, runApp("gen", "-o", seed))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"cmdfuzzcli", "show", seed}))

	require.Contains(t, out.String(), babynotes.HeaderName)
	require.Contains(t, out.String(), "0x"+strings.Repeat("00",
		babynotes.NameSize))

	require.Error(t, runApp("show"))
}
