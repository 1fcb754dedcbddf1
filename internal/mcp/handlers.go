package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/neardup/internal/constants"
	"github.com/nvandessel/neardup/internal/ratelimit"
	"github.com/nvandessel/neardup/internal/vecmath"
)

// registerTools registers all neardup MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "neardup_vectorize",
		Description: "Compute the hashed bag-of-tokens fingerprint of a text and return its non-zero components",
	}, s.handleVectorize)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "neardup_check",
		Description: "Check whether a text is a near-duplicate of anything seen so far; non-duplicates are remembered",
	}, s.handleCheck)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "neardup_filter",
		Description: "Filter a batch of texts, keeping only those that are not near-duplicates of earlier texts",
	}, s.handleFilter)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "neardup_compare",
		Description: "Compute the cosine similarity of two texts without touching the duplicate cache",
	}, s.handleCompare)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "neardup_stats",
		Description: "Report duplicate cache size and hit, miss and eviction counters",
	}, s.handleStats)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "neardup_reset",
		Description: "Forget every previously seen text",
	}, s.handleReset)
}

// checkText rejects texts that exceed constants.MaxTextLength.
func checkText(field, text string) error {
	if len(text) > constants.MaxTextLength {
		return fmt.Errorf("'%s' is too long: %d bytes (max %d)", field, len(text), constants.MaxTextLength)
	}
	return nil
}

// handleVectorize implements the neardup_vectorize tool.
func (s *Server) handleVectorize(ctx context.Context, req *sdk.CallToolRequest, args VectorizeInput) (_ *sdk.CallToolResult, _ VectorizeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("neardup_vectorize", start, retErr, sanitizeToolParams("neardup_vectorize", map[string]interface{}{
			"text": args.Text,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "neardup_vectorize"); err != nil {
		return nil, VectorizeOutput{}, err
	}
	if err := checkText("text", args.Text); err != nil {
		return nil, VectorizeOutput{}, err
	}

	vec := s.filter.Vectorizer().Vectorize(args.Text)

	components := make([]ComponentValue, 0)
	for i, v := range vec {
		if v != 0 {
			components = append(components, ComponentValue{Index: i, Value: v})
		}
	}

	return nil, VectorizeOutput{
		Dimension:  len(vec),
		Nonzero:    len(components),
		Components: components,
	}, nil
}

// handleCheck implements the neardup_check tool.
func (s *Server) handleCheck(ctx context.Context, req *sdk.CallToolRequest, args CheckInput) (_ *sdk.CallToolResult, _ CheckOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("neardup_check", start, retErr, sanitizeToolParams("neardup_check", map[string]interface{}{
			"text": args.Text,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "neardup_check"); err != nil {
		return nil, CheckOutput{}, err
	}
	if err := checkText("text", args.Text); err != nil {
		return nil, CheckOutput{}, err
	}

	dup := s.filter.IsDuplicate(args.Text)

	return nil, CheckOutput{
		Duplicate: dup,
		CacheSize: s.filter.Deduplicator().Len(),
	}, nil
}

// handleFilter implements the neardup_filter tool.
func (s *Server) handleFilter(ctx context.Context, req *sdk.CallToolRequest, args FilterInput) (_ *sdk.CallToolResult, _ FilterOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("neardup_filter", start, retErr, sanitizeToolParams("neardup_filter", map[string]interface{}{
			"texts": args.Texts,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "neardup_filter"); err != nil {
		return nil, FilterOutput{}, err
	}
	if len(args.Texts) > constants.MaxFilterBatch {
		return nil, FilterOutput{}, fmt.Errorf("too many texts: %d (max %d)", len(args.Texts), constants.MaxFilterBatch)
	}
	for i, text := range args.Texts {
		if err := checkText(fmt.Sprintf("texts[%d]", i), text); err != nil {
			return nil, FilterOutput{}, err
		}
	}

	out := FilterOutput{
		Retained: make([]string, 0, len(args.Texts)),
		Indices:  make([]int, 0, len(args.Texts)),
	}
	for i, text := range args.Texts {
		if err := ctx.Err(); err != nil {
			return nil, FilterOutput{}, fmt.Errorf("filter interrupted after %d of %d texts: %w", i, len(args.Texts), err)
		}
		if s.filter.IsDuplicate(text) {
			out.Dropped++
			continue
		}
		out.Retained = append(out.Retained, text)
		out.Indices = append(out.Indices, i)
	}

	return nil, out, nil
}

// handleCompare implements the neardup_compare tool.
func (s *Server) handleCompare(ctx context.Context, req *sdk.CallToolRequest, args CompareInput) (_ *sdk.CallToolResult, _ CompareOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("neardup_compare", start, retErr, sanitizeToolParams("neardup_compare", map[string]interface{}{
			"a": args.A, "b": args.B,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "neardup_compare"); err != nil {
		return nil, CompareOutput{}, err
	}
	if err := checkText("a", args.A); err != nil {
		return nil, CompareOutput{}, err
	}
	if err := checkText("b", args.B); err != nil {
		return nil, CompareOutput{}, err
	}

	v := s.filter.Vectorizer()
	sim := vecmath.CosineSimilarity(v.Vectorize(args.A), v.Vectorize(args.B))
	threshold := s.settings.Deduplication.SimilarityThreshold

	return nil, CompareOutput{
		Similarity: sim,
		Threshold:  threshold,
		Duplicate:  sim >= threshold,
	}, nil
}

// handleStats implements the neardup_stats tool.
func (s *Server) handleStats(ctx context.Context, req *sdk.CallToolRequest, args StatsInput) (_ *sdk.CallToolResult, _ StatsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("neardup_stats", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "neardup_stats"); err != nil {
		return nil, StatsOutput{}, err
	}

	return nil, StatsOutput{
		Stats:     s.filter.Deduplicator().Stats(),
		Threshold: s.settings.Deduplication.SimilarityThreshold,
		Dimension: s.filter.Vectorizer().Dimension(),
	}, nil
}

// handleReset implements the neardup_reset tool.
func (s *Server) handleReset(ctx context.Context, req *sdk.CallToolRequest, args ResetInput) (_ *sdk.CallToolResult, _ ResetOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("neardup_reset", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "neardup_reset"); err != nil {
		return nil, ResetOutput{}, err
	}

	d := s.filter.Deduplicator()
	cleared := d.Len()
	d.Reset()
	s.logger.Info("cache reset via MCP", "cleared", cleared)

	return nil, ResetOutput{
		Cleared: cleared,
		Message: fmt.Sprintf("Cleared %d cached representatives", cleared),
	}, nil
}
