package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/nvandessel/neardup/internal/featurize"
	"github.com/nvandessel/neardup/internal/vecmath"
	"github.com/spf13/cobra"
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Show the similarity of two texts",
		Long: `Compute the cosine similarity of the fingerprints of two texts and
report whether they count as near-duplicates at the configured threshold.

Examples:
  neardup compare 'class Foo {}' 'class Bar {}'
  neardup compare --files old.go new.go --threshold 0.9`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			fromFiles, _ := cmd.Flags().GetBool("files")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			a, b := args[0], args[1]
			if fromFiles {
				if a, err = readText(args[0]); err != nil {
					return err
				}
				if b, err = readText(args[1]); err != nil {
					return err
				}
			}

			v, err := featurize.New(cfg.Featurizer)
			if err != nil {
				return err
			}

			sim := vecmath.CosineSimilarity(v.Vectorize(a), v.Vectorize(b))
			threshold := cfg.Deduplication.SimilarityThreshold
			duplicate := sim >= threshold

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"similarity": sim,
					"threshold":  threshold,
					"duplicate":  duplicate,
				})
			}

			verdict := color.New(color.FgYellow).Sprint("distinct")
			if duplicate {
				verdict = color.New(color.FgGreen, color.Bold).Sprint("near-duplicate")
			}
			fmt.Fprintf(out, "similarity: %.4f (threshold %.2f) %s\n", sim, threshold, verdict)
			return nil
		},
	}

	addTuningFlags(cmd)
	cmd.Flags().Bool("files", false, "Treat arguments as file paths")

	return cmd
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
