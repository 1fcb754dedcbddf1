package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/neardup/internal/constants"
	"github.com/nvandessel/neardup/internal/dedup"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter [files...]",
		Short: "Print lines that are not near-duplicates of earlier lines",
		Long: `Read lines from the given files (or stdin when none are given, or for "-")
and print every line that is not a near-duplicate of a line printed before.

Output order matches input order. Interrupting with Ctrl+C stops after the
line in flight and exits with status 130.

Examples:
  neardup filter snippets.txt
  git diff | neardup filter --threshold 0.9
  neardup filter --policy lru --cache-size 5000 a.txt b.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showStats, _ := cmd.Flags().GetBool("stats")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			tf, decisions, err := textFilter(cfg, logger)
			if err != nil {
				return err
			}
			defer decisions.Close()

			inputs, closeInputs, err := openInputs(cmd, args)
			if err != nil {
				return err
			}
			defer closeInputs()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			notifySignals(sigChan)
			defer stopSignals(sigChan)
			go func() {
				select {
				case sig := <-sigChan:
					logger.Debug("interrupted", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			written, runErr := runFilter(ctx, tf, io.MultiReader(inputs...), cmd.OutOrStdout())

			if showStats {
				stats := tf.Deduplicator().Stats()
				if jsonOut {
					json.NewEncoder(cmd.ErrOrStderr()).Encode(map[string]interface{}{
						"written": written,
						"stats":   stats,
					})
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "kept %d of %d lines (%d duplicates, %d evictions, cache %d/%d %s)\n",
						written, stats.Hits+stats.Misses, stats.Hits, stats.Evictions,
						stats.Size, stats.Capacity, stats.Policy)
				}
			}

			return runErr
		},
	}

	addTuningFlags(cmd)
	cmd.Flags().Bool("stats", false, "Print cache statistics to stderr when done")

	return cmd
}

// openInputs opens the named files, or stdin when there are none. "-" also
// names stdin.
func openInputs(cmd *cobra.Command, args []string) ([]io.Reader, func(), error) {
	if len(args) == 0 {
		return []io.Reader{cmd.InOrStdin()}, func() {}, nil
	}

	var (
		readers []io.Reader
		files   []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	for _, name := range args {
		if name == "-" {
			readers = append(readers, cmd.InOrStdin())
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	return readers, closeAll, nil
}

// runFilter streams lines from r through tf and writes the retained lines to
// w. The reader, filter and writer run as separate stages; the first stage
// error cancels the others. It returns the number of lines written.
//
// On cancellation the returned error matches dedup.ErrCanceled. Lines already
// retained are flushed before returning.
func runFilter(ctx context.Context, tf *dedup.TextFilter, r io.Reader, w io.Writer) (int, error) {
	g, gctx := errgroup.WithContext(ctx)

	lines := make(chan string)
	readDone := make(chan error, 1)

	// A blocked read on stdin cannot be interrupted, so the reader runs
	// outside the group and is abandoned on cancellation.
	go func() {
		defer close(lines)
		readDone <- readLines(gctx, r, lines)
	}()
	g.Go(func() error {
		select {
		case err := <-readDone:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	retained, errc := tf.FilterLines(gctx, lines)

	written := 0
	g.Go(func() error {
		bw := bufio.NewWriter(w)
		for line := range retained {
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			written++
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return <-errc
	})

	err := g.Wait()
	return written, err
}

// readLines sends each line of r on lines until r is exhausted or ctx is
// done. Cancellation is not an error here; the filter stage reports it.
func readLines(ctx context.Context, r io.Reader, lines chan<- string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.MaxTextLength)

	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
