package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nvandessel/neardup/internal/config"
	"github.com/nvandessel/neardup/internal/constants"
	"github.com/nvandessel/neardup/internal/dedup"
	"github.com/nvandessel/neardup/internal/featurize"
	"github.com/nvandessel/neardup/internal/logging"
	"github.com/spf13/cobra"
)

// addTuningFlags registers the featurizer and cache flags shared by commands
// that build a deduplicator.
func addTuningFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("threshold", constants.DefaultSimilarityThreshold, "Cosine similarity at or above which lines are duplicates")
	cmd.Flags().Int("cache-size", constants.DefaultMaxCacheSize, "Maximum number of remembered fingerprints")
	cmd.Flags().Int("dimension", constants.DefaultDimension, "Feature vector length")
	cmd.Flags().Bool("normalize-identifiers", false, "Case-fold identifiers as well as keywords")
	cmd.Flags().String("policy", string(constants.DefaultEvictionPolicy), "Cache eviction policy: fifo or lru")
}

// loadSettings loads configuration from --config (or the default location),
// applies environment overrides and then any explicitly set flags.
func loadSettings(cmd *cobra.Command) (*config.NeardupConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Lookup("threshold") != nil {
		if flags.Changed("threshold") {
			cfg.Deduplication.SimilarityThreshold, _ = flags.GetFloat64("threshold")
		}
		if flags.Changed("cache-size") {
			cfg.Deduplication.MaxCacheSize, _ = flags.GetInt("cache-size")
		}
		if flags.Changed("dimension") {
			cfg.Featurizer.Dimension, _ = flags.GetInt("dimension")
		}
		if flags.Changed("normalize-identifiers") {
			cfg.Featurizer.NormalizeIdentifiers, _ = flags.GetBool("normalize-identifiers")
		}
		if flags.Changed("policy") {
			policy, _ := flags.GetString("policy")
			cfg.Deduplication.EvictionPolicy = constants.EvictionPolicy(strings.ToLower(policy))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// newLogger returns an operational logger writing to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.NeardupConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// textFilter wires a vectorizer and deduplicator from cfg. The returned
// DecisionLogger may be nil and must be closed by the caller.
func textFilter(cfg *config.NeardupConfig, logger *slog.Logger) (*dedup.TextFilter, *logging.DecisionLogger, error) {
	vectorizer, err := featurize.New(cfg.Featurizer)
	if err != nil {
		return nil, nil, err
	}

	var decisions *logging.DecisionLogger
	if dir, err := cfg.LogDir(); err == nil {
		decisions = logging.NewDecisionLogger(dir, cfg.Logging.Level)
	}

	d, err := dedup.New(cfg.Deduplication,
		dedup.WithLogger(logger),
		dedup.WithDecisionLogger(decisions),
	)
	if err != nil {
		decisions.Close()
		return nil, nil, err
	}

	return dedup.NewTextFilter(vectorizer, d), decisions, nil
}
