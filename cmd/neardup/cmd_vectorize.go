package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/neardup/internal/featurize"
	"github.com/spf13/cobra"
)

// component is a single non-zero vector component.
type component struct {
	Index int     `json:"index"`
	Value float32 `json:"value"`
}

func newVectorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectorize [text]",
		Short: "Print the non-zero components of a text's fingerprint",
		Long: `Featurize text and print its non-zero vector components, one
"index value" pair per line. Reads stdin when no text is given.

Examples:
  neardup vectorize 'for (int i = 0; i < n; i++) {}'
  cat main.go | neardup vectorize --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showTokens, _ := cmd.Flags().GetBool("tokens")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			text, err := textArg(cmd, args)
			if err != nil {
				return err
			}

			v, err := featurize.New(cfg.Featurizer)
			if err != nil {
				return err
			}
			vec := v.Vectorize(text)
			components := nonZero(vec)

			out := cmd.OutOrStdout()
			if jsonOut {
				result := map[string]interface{}{
					"dimension":  len(vec),
					"nonzero":    len(components),
					"components": components,
				}
				if showTokens {
					result["tokens"] = normalizedTokens(text, cfg.Featurizer.NormalizeIdentifiers)
				}
				return json.NewEncoder(out).Encode(result)
			}

			if showTokens {
				for _, tok := range normalizedTokens(text, cfg.Featurizer.NormalizeIdentifiers) {
					f := featurize.HashToken(tok, len(vec))
					fmt.Fprintf(out, "# %q -> %d (%+g)\n", tok, f.Index, f.Sign)
				}
			}
			for _, c := range components {
				fmt.Fprintf(out, "%d %g\n", c.Index, c.Value)
			}
			return nil
		},
	}

	addTuningFlags(cmd)
	cmd.Flags().Bool("tokens", false, "Also show the tokens and the buckets they hash to")

	return cmd
}

// textArg joins args into a single text, or reads all of stdin when there
// are none.
func textArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func nonZero(vec featurize.Vector) []component {
	components := make([]component, 0)
	for i, v := range vec {
		if v != 0 {
			components = append(components, component{Index: i, Value: v})
		}
	}
	return components
}

func normalizedTokens(text string, normalizeIdentifiers bool) []string {
	toks := featurize.Tokenize(text)
	for i, tok := range toks {
		toks[i] = featurize.NormalizeToken(tok, normalizeIdentifiers)
	}
	return toks
}
