package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"
)

var showCommand = cli.Command{
	Name:      "show",
	Usage:     "Print an input in interchange form as a table.",
	ArgsUsage: "input-file",
	Description: `
	Decodes the input file against the selected grammar and prints its
	header fields followed by one row per command.
	`,
	Flags:  grammarFlags,
	Action: show,
}

func show(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file, got %d "+
			"arguments", ctx.NArg())
	}

	g, err := loadGrammar(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}

	in, err := codec.New(g).DecodeBytes(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(ctx.App.Writer, renderInput(g, in))

	return err
}

// renderInput formats in as a table of header fields and commands.
func renderInput(g *grammar.Grammar, in *grammar.Input) string {
	t := table.NewWriter()
	t.SetTitle("%s: %d commands", g.Name, len(in.Commands))
	t.AppendHeader(table.Row{"#", "Command", "Fields"})

	for i, field := range g.Header {
		t.AppendRow(table.Row{
			"hdr", field.Name, formatValue(in.Header[i]),
		})
	}
	if len(g.Header) > 0 {
		t.AppendSeparator()
	}

	for i, cmd := range in.Commands {
		values := make([]string, len(cmd.Fields))
		for j, v := range cmd.Fields {
			values[j] = formatValue(v)
		}

		t.AppendRow(table.Row{
			i, g.Table.MustLookup(cmd.Opcode).String(),
			strings.Join(values, " "),
		})
	}

	return t.Render()
}

func formatValue(v grammar.FieldValue) string {
	switch v := v.(type) {
	case grammar.SInt:
		return fmt.Sprintf("%d", int64(v))

	case grammar.UInt:
		return fmt.Sprintf("%d", uint64(v))

	case grammar.Binary:
		return "0x" + hex.EncodeToString(v)

	default:
		return fmt.Sprintf("%v", v)
	}
}
