package mcp

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/neardup/internal/constants"
)

const (
	fooClass = "public class Foo { void Bar() {} }"
	bazClass = "public class Baz { void Bar() {} }"
)

func TestHandleVectorize(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, out, err := server.handleVectorize(ctx, req, VectorizeInput{Text: fooClass})
	if err != nil {
		t.Fatalf("vectorize failed: %v", err)
	}
	if out.Dimension != constants.DefaultDimension {
		t.Errorf("dimension = %d, want %d", out.Dimension, constants.DefaultDimension)
	}
	if out.Nonzero != len(out.Components) {
		t.Errorf("nonzero = %d, components = %d", out.Nonzero, len(out.Components))
	}
	if out.Nonzero == 0 {
		t.Fatal("expected non-zero components")
	}

	var sumSq float64
	prev := -1
	for _, c := range out.Components {
		if c.Index <= prev {
			t.Errorf("components not in index order: %d after %d", c.Index, prev)
		}
		prev = c.Index
		sumSq += float64(c.Value) * float64(c.Value)
	}
	if math.Abs(math.Sqrt(sumSq)-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", math.Sqrt(sumSq))
	}

	// Vectorizing must not touch the cache
	if n := server.filter.Deduplicator().Len(); n != 0 {
		t.Errorf("cache size = %d after vectorize, want 0", n)
	}
}

func TestHandleVectorize_Empty(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	_, out, err := server.handleVectorize(context.Background(), nil, VectorizeInput{Text: "   \n\t"})
	if err != nil {
		t.Fatalf("vectorize failed: %v", err)
	}
	if out.Nonzero != 0 {
		t.Errorf("nonzero = %d, want 0 for whitespace-only text", out.Nonzero)
	}
	if out.Components == nil {
		t.Error("components should be an empty list, not null")
	}
}

func TestHandleVectorize_TooLong(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	text := strings.Repeat("a", constants.MaxTextLength+1)
	_, _, err := server.handleVectorize(context.Background(), nil, VectorizeInput{Text: text})
	if err == nil {
		t.Fatal("expected error for oversized text")
	}
	if !strings.Contains(err.Error(), "too long") {
		t.Errorf("error = %v, want too long", err)
	}
}

func TestHandleCheck(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	ctx := context.Background()

	_, out, err := server.handleCheck(ctx, nil, CheckInput{Text: fooClass})
	if err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	if out.Duplicate {
		t.Error("first check should not be a duplicate")
	}
	if out.CacheSize != 1 {
		t.Errorf("cache size = %d, want 1", out.CacheSize)
	}

	_, out, err = server.handleCheck(ctx, nil, CheckInput{Text: fooClass})
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if !out.Duplicate {
		t.Error("identical text should be a duplicate")
	}
	if out.CacheSize != 1 {
		t.Errorf("cache size = %d, want 1", out.CacheSize)
	}

	// Keywords are case-insensitive
	_, out, err = server.handleCheck(ctx, nil, CheckInput{Text: "PUBLIC CLASS Foo { VOID Bar() {} }"})
	if err != nil {
		t.Fatalf("third check failed: %v", err)
	}
	if !out.Duplicate {
		t.Error("keyword case change should still be a duplicate")
	}
}

func TestHandleFilter(t *testing.T) {
	server, _ := setupTestServerWith(t, func(c *Config) {
		c.Settings.Deduplication.SimilarityThreshold = 0.85
	})
	defer server.Close()

	texts := []string{
		fooClass,
		"int main() { return 0; }",
		bazClass,
		fooClass,
		"SELECT id FROM users WHERE name = 'x'",
	}

	_, out, err := server.handleFilter(context.Background(), nil, FilterInput{Texts: texts})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}

	wantIndices := []int{0, 1, 4}
	if len(out.Indices) != len(wantIndices) {
		t.Fatalf("indices = %v, want %v", out.Indices, wantIndices)
	}
	for i, idx := range wantIndices {
		if out.Indices[i] != idx {
			t.Errorf("indices[%d] = %d, want %d", i, out.Indices[i], idx)
		}
		if out.Retained[i] != texts[idx] {
			t.Errorf("retained[%d] = %q, want %q", i, out.Retained[i], texts[idx])
		}
	}
	if out.Dropped != 2 {
		t.Errorf("dropped = %d, want 2", out.Dropped)
	}
}

func TestHandleFilter_TooMany(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	texts := make([]string, constants.MaxFilterBatch+1)
	_, _, err := server.handleFilter(context.Background(), nil, FilterInput{Texts: texts})
	if err == nil {
		t.Fatal("expected error for oversized batch")
	}
	if n := server.filter.Deduplicator().Len(); n != 0 {
		t.Errorf("cache size = %d after rejected batch, want 0", n)
	}
}

func TestHandleFilter_Cancelled(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := server.handleFilter(ctx, nil, FilterInput{Texts: []string{"a", "b"}})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("error = %v, want interrupted", err)
	}
}

func TestHandleCompare(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	ctx := context.Background()

	_, out, err := server.handleCompare(ctx, nil, CompareInput{A: fooClass, B: fooClass})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if math.Abs(out.Similarity-1) > 1e-6 {
		t.Errorf("self similarity = %f, want 1", out.Similarity)
	}
	if !out.Duplicate {
		t.Error("identical texts should be duplicates")
	}

	_, out, err = server.handleCompare(ctx, nil, CompareInput{A: fooClass, B: bazClass})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if out.Similarity <= 0.85 {
		t.Errorf("near-duplicate similarity = %f, want > 0.85", out.Similarity)
	}
	if out.Threshold != constants.DefaultSimilarityThreshold {
		t.Errorf("threshold = %f, want %f", out.Threshold, constants.DefaultSimilarityThreshold)
	}
	if out.Duplicate != (out.Similarity >= out.Threshold) {
		t.Errorf("duplicate = %v inconsistent with similarity %f", out.Duplicate, out.Similarity)
	}

	if n := server.filter.Deduplicator().Len(); n != 0 {
		t.Errorf("cache size = %d after compare, want 0", n)
	}
}

func TestHandleStats(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	ctx := context.Background()
	for _, text := range []string{"a = 1", "a = 1", "b = 2"} {
		if _, _, err := server.handleCheck(ctx, nil, CheckInput{Text: text}); err != nil {
			t.Fatalf("check failed: %v", err)
		}
	}

	_, out, err := server.handleStats(ctx, nil, StatsInput{})
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if out.Stats.Size != 2 {
		t.Errorf("size = %d, want 2", out.Stats.Size)
	}
	if out.Stats.Hits != 1 || out.Stats.Misses != 2 {
		t.Errorf("hits = %d, misses = %d, want 1 and 2", out.Stats.Hits, out.Stats.Misses)
	}
	if out.Stats.Capacity != constants.DefaultMaxCacheSize {
		t.Errorf("capacity = %d, want %d", out.Stats.Capacity, constants.DefaultMaxCacheSize)
	}
	if out.Stats.Policy != constants.PolicyFIFO {
		t.Errorf("policy = %q, want fifo", out.Stats.Policy)
	}
	if out.Dimension != constants.DefaultDimension {
		t.Errorf("dimension = %d, want %d", out.Dimension, constants.DefaultDimension)
	}
}

func TestHandleReset(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	ctx := context.Background()
	if _, _, err := server.handleCheck(ctx, nil, CheckInput{Text: fooClass}); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	_, out, err := server.handleReset(ctx, nil, ResetInput{})
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if out.Cleared != 1 {
		t.Errorf("cleared = %d, want 1", out.Cleared)
	}

	// Previously seen text is new again
	_, check, err := server.handleCheck(ctx, nil, CheckInput{Text: fooClass})
	if err != nil {
		t.Fatalf("check after reset failed: %v", err)
	}
	if check.Duplicate {
		t.Error("text should not be a duplicate after reset")
	}
}

func TestHandleReset_RateLimited(t *testing.T) {
	server, _ := setupTestServer(t)
	defer server.Close()

	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	// neardup_reset has burst=2, so the first two calls succeed
	for i := 0; i < 2; i++ {
		if _, _, err := server.handleReset(ctx, req, ResetInput{}); err != nil {
			t.Fatalf("reset %d should succeed: %v", i+1, err)
		}
	}

	// Third call should be rate-limited
	_, _, err := server.handleReset(ctx, req, ResetInput{})
	if err == nil {
		t.Fatal("third reset should be rate-limited")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("Expected rate limit error, got: %v", err)
	}
}

func TestHandlers_AreAudited(t *testing.T) {
	server, tmpDir := setupTestServer(t)

	ctx := context.Background()
	if _, _, err := server.handleCheck(ctx, nil, CheckInput{Text: "secret token value"}); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if _, _, err := server.handleFilter(ctx, nil, FilterInput{Texts: []string{"x", "y"}}); err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readAuditEntries(t, filepath.Join(tmpDir, "audit.jsonl"))
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}
	if entries[0].Tool != "neardup_check" || entries[0].Params["text"] != "(set)" {
		t.Errorf("check entry = %+v", entries[0])
	}
	if entries[1].Tool != "neardup_filter" || entries[1].Params["texts"] != "2 items" {
		t.Errorf("filter entry = %+v", entries[1])
	}
}
