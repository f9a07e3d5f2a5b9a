package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/janekbaraniewski/clarc/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if os.Getenv("CLARC_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	root := cobra.Command{
		Use:   "clarc",
		Short: "Clarc mirrors, indexes and searches local Claude Code conversation archives.",
	}

	root.AddCommand(
		newSyncCommand(cfg),
		newIndexCommand(cfg),
		newStatsCommand(cfg),
		newSearchCommand(cfg),
		newRunCommand(cfg),
		newVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
