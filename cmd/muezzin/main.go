// Command muezzin schedules and plays the adhan for the five daily prayers.
package main

import (
	"os"

	"github.com/roach88/muezzin/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// JSON results already went to stdout; the error line goes to stderr.
	f := &cli.OutputFormatter{Format: "text", Writer: os.Stderr}
	_ = f.Error(err, nil)
	os.Exit(cli.GetExitCode(err))
}
