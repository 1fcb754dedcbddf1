// Package mcp provides an MCP (Model Context Protocol) server for neardup.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/neardup/internal/config"
	"github.com/nvandessel/neardup/internal/dedup"
	"github.com/nvandessel/neardup/internal/featurize"
	"github.com/nvandessel/neardup/internal/logging"
	"github.com/nvandessel/neardup/internal/ratelimit"
)

// Server wraps the MCP SDK server and exposes one shared deduplicator to
// every connected tool call.
type Server struct {
	server         *sdk.Server
	settings       *config.NeardupConfig
	filter         *dedup.TextFilter
	toolLimiters   ratelimit.ToolLimiters
	auditLogger    *AuditLogger
	decisionLogger *logging.DecisionLogger
	logger         *slog.Logger
	closeOnce      sync.Once
}

// Config holds server configuration.
type Config struct {
	Name     string                // Server name (e.g., "neardup")
	Version  string                // Server version
	Settings *config.NeardupConfig // Featurizer, cache and logging settings; nil means defaults
	Logger   *slog.Logger          // Operational logger; nil discards
}

// NewServer creates a new MCP server with neardup tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	name := cfg.Name
	if name == "" {
		name = settings.Server.Name
	}

	vectorizer, err := featurize.New(settings.Featurizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create vectorizer: %w", err)
	}

	var (
		decisionLogger *logging.DecisionLogger
		auditLogger    *AuditLogger
	)
	if logDir, err := settings.LogDir(); err == nil {
		decisionLogger = logging.NewDecisionLogger(logDir, settings.Logging.Level)
		if settings.Server.Audit {
			auditLogger = NewAuditLogger(logDir)
		}
	} else {
		logger.Warn("log directory unavailable, decision and audit logs disabled", "error", err)
	}

	deduplicator, err := dedup.New(settings.Deduplication,
		dedup.WithLogger(logger),
		dedup.WithDecisionLogger(decisionLogger),
	)
	if err != nil {
		decisionLogger.Close()
		_ = auditLogger.Close()
		return nil, fmt.Errorf("failed to create deduplicator: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("client initialized")
		},
	})

	s := &Server{
		server:         mcpServer,
		settings:       settings,
		filter:         dedup.NewTextFilter(vectorizer, deduplicator),
		toolLimiters:   ratelimit.NewToolLimiters(),
		auditLogger:    auditLogger,
		decisionLogger: decisionLogger,
		logger:         logger,
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer stopSignals(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("serving MCP over stdio",
		"dimension", s.settings.Featurizer.Dimension,
		"threshold", s.settings.Deduplication.SimilarityThreshold,
		"cache_size", s.settings.Deduplication.MaxCacheSize,
		"policy", s.settings.Deduplication.EvictionPolicy.String(),
	)

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close releases the audit and decision logs. It is safe to call more than
// once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.auditLogger.Close()
		s.decisionLogger.Close()
	})
	return err
}
