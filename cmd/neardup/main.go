package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nvandessel/neardup/internal/dedup"
	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

// exitCanceled is the conventional exit status after SIGINT.
const exitCanceled = 130

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, dedup.ErrCanceled) {
			os.Exit(exitCanceled)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "neardup",
		Short: "Near-duplicate detection for source code and text",
		Long: `neardup fingerprints text with a hashed bag of tokens and drops
anything that is nearly identical to something it has already seen.

Lines are compared by cosine similarity against a bounded cache of
previously admitted fingerprints. Keywords are case-insensitive;
identifiers can optionally be case-folded too.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.neardup/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newFilterCmd(),
		newVectorizeCmd(),
		newCompareCmd(),
		newServeCmd(),
		newConfigCmd(),
	)

	return rootCmd
}
