package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cmdfuzz/cmdfuzz/afl"
	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/cmdfuzz/cmdfuzz/fuzzcfg"
	"github.com/cmdfuzz/cmdfuzz/fuzzutil"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/urfave/cli"
)

// outputPerm is the permission of the files the commands write.
const outputPerm = 0o644

var errMissingOutput = errors.New("an output file must be set with --output")

var outputFlag = cli.StringFlag{
	Name:      "output, o",
	Usage:     "The file to write. It must not exist yet.",
	TakesFile: true,
}

// loadGrammar returns the grammar selected by the command's flags.
func loadGrammar(ctx *cli.Context) (*grammar.Grammar, error) {
	target := &fuzzcfg.Target{
		Builtin:     ctx.String("target"),
		GrammarFile: ctx.String("grammar"),
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	return target.Load()
}

var genCommand = cli.Command{
	Name:  "gen",
	Usage: "Write the seed input of a grammar in interchange form.",
	Description: `
	Writes the seed input of the selected grammar: its zero header, if any,
	followed by the exit command, or the first command of the grammar when
	it has no exit command. The file can be placed in the seed directory of
	the fuzzing host.
	`,
	Flags:  append([]cli.Flag{outputFlag}, grammarFlags...),
	Action: gen,
}

func gen(ctx *cli.Context) error {
	output := ctx.String("output")
	if output == "" {
		return errMissingOutput
	}

	g, err := loadGrammar(ctx)
	if err != nil {
		return err
	}

	data, err := codec.New(g).EncodeBytes(g.SeedInput())
	if err != nil {
		return err
	}

	return fuzzutil.WriteNewFile(output, data, outputPerm)
}

var synCommand = cli.Command{
	Name:      "syn",
	Usage:     "Convert an input in interchange form.",
	ArgsUsage: "input-file",
	Description: `
	Decodes the input file and writes the program input the fuzzing host
	would feed to its target: the exit command is appended and the sequence
	is synthesized into the line oriented form. With --reencode the decoded
	input is written back in canonical interchange form instead.
	`,
	Flags: append([]cli.Flag{
		outputFlag,
		cli.BoolFlag{
			Name:  "reencode",
			Usage: "Write the interchange form instead of the synthesis.",
		},
	}, grammarFlags...),
	Action: syn,
}

func syn(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file, got %d "+
			"arguments", ctx.NArg())
	}

	output := ctx.String("output")
	if output == "" {
		return errMissingOutput
	}

	g, err := loadGrammar(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}

	var out []byte
	if ctx.Bool("reencode") {
		c := codec.New(g)

		in, err := c.DecodeBytes(data)
		if err != nil {
			return err
		}

		out, err = c.EncodeBytes(in)
		if err != nil {
			return err
		}
	} else {
		out, err = postProcess(g, data)
		if err != nil {
			return err
		}
	}

	return fuzzutil.WriteNewFile(output, out, outputPerm)
}

// postProcess runs data through the post processing of a fuzzing session.
func postProcess(g *grammar.Grammar, data []byte) ([]byte, error) {
	adapter := afl.New(afl.Config{
		Grammar: g,
	})

	h, err := adapter.Init(0, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = adapter.Deinit(h)
	}()

	out, err := adapter.PostProcess(h, data)
	if err != nil {
		return nil, err
	}

	// The session's buffer is released with the session.
	return append([]byte(nil), out...), nil
}
