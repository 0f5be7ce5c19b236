package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cmdfuzz/cmdfuzz"
	"github.com/cmdfuzz/cmdfuzz/signal"
	flags "github.com/jessevdk/go-flags"
)

func main() {
	// Hook interceptor for os signals.
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cmdfuzz.SetupLoggers(shutdownInterceptor)

	// Load the configuration, and parse any command line options. This
	// function will also set up logging properly.
	loadedConfig, err := cmdfuzz.LoadConfig()
	if err != nil {
		var flagErr *flags.Error
		if !errors.As(err, &flagErr) || flagErr.Type != flags.ErrHelp {
			// Print error if not due to help request.
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Help was requested, exit normally.
		os.Exit(0)
	}

	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err = cmdfuzz.Main(loadedConfig, shutdownInterceptor); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
