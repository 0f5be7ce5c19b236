package main

import (
	"fmt"
	"os"

	"github.com/cmdfuzz/cmdfuzz/babynotes"
	"github.com/cmdfuzz/cmdfuzz/build"
	"github.com/urfave/cli"
)

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[cmdfuzzcli] %v\n", err)
	os.Exit(1)
}

// grammarFlags select the grammar of a command.
var grammarFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "target",
		Value: babynotes.HeaderName,
		Usage: "The built-in grammar to use, one of " +
			babynotes.Name + " or " + babynotes.HeaderName + ".",
	},
	cli.StringFlag{
		Name: "grammar",
		Usage: "The path to a YAML grammar file. Takes precedence " +
			"over --target.",
		TakesFile: true,
	},
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "cmdfuzzcli"
	app.Version = build.Version() + " commit=" + build.Commit
	app.Usage = "create and inspect inputs of the command sequence mutator"
	app.Commands = []cli.Command{
		genCommand,
		synCommand,
		showCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
