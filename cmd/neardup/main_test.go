package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/nvandessel/neardup/internal/config"
	"github.com/nvandessel/neardup/internal/dedup"
)

// isolateHome sets HOME to a temp directory so tests never read a real
// ~/.neardup/config.yaml, and clears NEARDUP_* overrides.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"NEARDUP_DIMENSION", "NEARDUP_NORMALIZE_IDENTIFIERS", "NEARDUP_SIMILARITY_THRESHOLD",
		"NEARDUP_MAX_CACHE_SIZE", "NEARDUP_EVICTION_POLICY", "NEARDUP_LOG_LEVEL", "NEARDUP_LOG_DIR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

// runCmd executes the root command with args and stdin, returning stdout.
func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func TestNewVersionCmd(t *testing.T) {
	isolateHome(t)

	out, _, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "neardup version "+version) {
		t.Errorf("output = %q, want version string", out)
	}

	out, _, err = runCmd(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	var result map[string]string
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parsing JSON output: %v", err)
	}
	if result["version"] != version {
		t.Errorf("version = %q, want %q", result["version"], version)
	}
}

func TestFilterCmd_Stdin(t *testing.T) {
	isolateHome(t)

	input := strings.Join([]string{
		"public class Foo { void Bar() {} }",
		"int main() { return 0; }",
		"public class Baz { void Bar() {} }",
		"PUBLIC CLASS Foo { VOID Bar() {} }",
		"SELECT id FROM users",
	}, "\n") + "\n"

	out, _, err := runCmd(t, input, "filter", "--threshold", "0.85")
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}

	got := splitLines(out)
	want := []string{
		"public class Foo { void Bar() {} }",
		"int main() { return 0; }",
		"SELECT id FROM users",
	}
	if len(got) != len(want) {
		t.Fatalf("filter output = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilterCmd_DefaultThresholdKeepsNearDuplicates(t *testing.T) {
	isolateHome(t)

	input := "public class Foo { void Bar() {} }\npublic class Baz { void Bar() {} }\n"
	out, _, err := runCmd(t, input, "filter")
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if got := splitLines(out); len(got) != 2 {
		t.Errorf("filter output = %v, want both lines at default threshold", got)
	}
}

func TestFilterCmd_Files(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(a, []byte("x := 1\ny := 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("y := 2\nz := 3\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCmd(t, "", "filter", a, b)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	got := splitLines(out)
	want := []string{"x := 1", "y := 2", "z := 3"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("filter output = %v, want %v", got, want)
	}
}

func TestFilterCmd_MissingFile(t *testing.T) {
	isolateHome(t)

	_, _, err := runCmd(t, "", "filter", filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing input file")
	}
}

func TestFilterCmd_Stats(t *testing.T) {
	isolateHome(t)

	_, stderr, err := runCmd(t, "a = 1\na = 1\nb = 2\n", "filter", "--stats")
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if !strings.Contains(stderr, "kept 2 of 3 lines") {
		t.Errorf("stats = %q, want kept 2 of 3 lines", stderr)
	}

	_, stderr, err = runCmd(t, "a = 1\na = 1\n", "filter", "--stats", "--json")
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	var result struct {
		Written int              `json:"written"`
		Stats   dedup.CacheStats `json:"stats"`
	}
	if err := json.Unmarshal([]byte(stderr), &result); err != nil {
		t.Fatalf("parsing JSON stats %q: %v", stderr, err)
	}
	if result.Written != 1 || result.Stats.Hits != 1 {
		t.Errorf("stats = %+v, want written 1 and hits 1", result)
	}
}

func TestFilterCmd_InvalidFlags(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"threshold above one", []string{"filter", "--threshold", "1.5"}},
		{"zero cache", []string{"filter", "--cache-size", "0"}},
		{"zero dimension", []string{"filter", "--dimension", "0"}},
		{"unknown policy", []string{"filter", "--policy", "random"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCmd(t, "x\n", tt.args...)
			if err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestRunFilter_Canceled(t *testing.T) {
	isolateHome(t)

	cfg := config.Default()
	tf, _, err := textFilter(cfg, nil)
	if err != nil {
		t.Fatalf("textFilter failed: %v", err)
	}

	// A pipe that is never written blocks the reader like an idle terminal.
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := runFilter(ctx, tf, pr, io.Discard)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, dedup.ErrCanceled) {
			t.Errorf("error = %v, want ErrCanceled", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runFilter did not return after cancellation")
	}
}

func TestVectorizeCmd(t *testing.T) {
	isolateHome(t)

	out, _, err := runCmd(t, "", "vectorize", "--json", "return", "x;")
	if err != nil {
		t.Fatalf("vectorize failed: %v", err)
	}
	var result struct {
		Dimension  int         `json:"dimension"`
		Nonzero    int         `json:"nonzero"`
		Components []component `json:"components"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parsing JSON output: %v", err)
	}
	if result.Dimension != 4096 {
		t.Errorf("dimension = %d, want 4096", result.Dimension)
	}
	// return, x and ; hash to distinct buckets with overwhelming probability
	if result.Nonzero == 0 || result.Nonzero != len(result.Components) {
		t.Errorf("nonzero = %d, components = %d", result.Nonzero, len(result.Components))
	}
}

func TestVectorizeCmd_StdinAndDimension(t *testing.T) {
	isolateHome(t)

	out, _, err := runCmd(t, "alpha beta", "vectorize", "--dimension", "8")
	if err != nil {
		t.Fatalf("vectorize failed: %v", err)
	}
	for _, line := range splitLines(out) {
		var idx int
		var val float64
		if _, err := fmt.Sscan(line, &idx, &val); err != nil {
			t.Fatalf("unexpected line %q: %v", line, err)
		}
		if idx < 0 || idx >= 8 {
			t.Errorf("index %d out of range for dimension 8", idx)
		}
	}
}

func TestVectorizeCmd_Tokens(t *testing.T) {
	isolateHome(t)

	out, _, err := runCmd(t, "", "vectorize", "--tokens", "--json", "IF", "x")
	if err != nil {
		t.Fatalf("vectorize failed: %v", err)
	}
	var result struct {
		Tokens []string `json:"tokens"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parsing JSON output: %v", err)
	}
	if strings.Join(result.Tokens, " ") != "if x" {
		t.Errorf("tokens = %v, want [if x]", result.Tokens)
	}
}

func TestCompareCmd(t *testing.T) {
	isolateHome(t)
	color.NoColor = true

	out, _, err := runCmd(t, "", "compare", "int x = 1;", "int x = 1;")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if !strings.Contains(out, "similarity: 1.0000") || !strings.Contains(out, "near-duplicate") {
		t.Errorf("output = %q, want identical near-duplicate", out)
	}

	out, _, err = runCmd(t, "", "compare", "--json", "alpha", "omega")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	var result struct {
		Similarity float64 `json:"similarity"`
		Duplicate  bool    `json:"duplicate"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parsing JSON output: %v", err)
	}
	if result.Duplicate {
		t.Errorf("distinct words reported as duplicate (similarity %f)", result.Similarity)
	}
}

func TestCompareCmd_Files(t *testing.T) {
	isolateHome(t)
	color.NoColor = true
	dir := t.TempDir()

	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	src := "func add(a, b int) int {\n\treturn a + b\n}\n"
	if err := os.WriteFile(a, []byte(src), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(src+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCmd(t, "", "compare", "--files", a, b)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if !strings.Contains(out, "near-duplicate") {
		t.Errorf("output = %q, want near-duplicate", out)
	}
}

func TestConfigCmd(t *testing.T) {
	home := isolateHome(t)

	dir := filepath.Join(home, ".neardup")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	yamlContent := "deduplication:\n  similarity_threshold: 0.9\n  eviction_policy: lru\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCmd(t, "", "config", "--json")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	var cfg config.NeardupConfig
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("parsing JSON output: %v", err)
	}
	if cfg.Deduplication.SimilarityThreshold != 0.9 {
		t.Errorf("threshold = %f, want 0.9", cfg.Deduplication.SimilarityThreshold)
	}
	if cfg.Deduplication.EvictionPolicy != "lru" {
		t.Errorf("policy = %q, want lru", cfg.Deduplication.EvictionPolicy)
	}

	out, _, err = runCmd(t, "", "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(out, "similarity_threshold: 0.9") {
		t.Errorf("YAML output = %q, want threshold 0.9", out)
	}
}

func TestConfigCmd_ExplicitPath(t *testing.T) {
	isolateHome(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("featurizer:\n  dimension: 256\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCmd(t, "", "config", "--json", "--config", path)
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	var cfg config.NeardupConfig
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("parsing JSON output: %v", err)
	}
	if cfg.Featurizer.Dimension != 256 {
		t.Errorf("dimension = %d, want 256", cfg.Featurizer.Dimension)
	}
}

func TestConfigCmd_LogLevelFlag(t *testing.T) {
	isolateHome(t)

	_, _, err := runCmd(t, "", "config", "--log-level", "verbose")
	if err == nil {
		t.Error("expected error for unknown log level")
	}

	out, _, err := runCmd(t, "", "config", "--json", "--log-level", "debug")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(out, `"level":"debug"`) {
		t.Errorf("output = %q, want debug level", out)
	}
}
