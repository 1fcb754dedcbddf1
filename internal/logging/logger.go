// Package logging provides leveled logging and decision tracing for neardup.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A DecisionLogger for structured JSONL traces of cache decisions
//     (~/.neardup/decisions.jsonl by default)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug.
// At this level every similarity comparison is logged, not only the outcome.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text records to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Decision event names.
const (
	EventCacheHit       = "cache_hit"
	EventCacheInsert    = "cache_insert"
	EventCacheEvict     = "cache_evict"
	EventCacheClear     = "cache_clear"
	EventStreamCanceled = "stream_canceled"
)

// Decision is one traced deduplication decision.
type Decision struct {
	Time       string  `json:"time"`
	Event      string  `json:"event"`
	Seq        uint64  `json:"seq,omitempty"`
	MatchSeq   uint64  `json:"match_seq,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	CacheSize  int     `json:"cache_size"`
	Policy     string  `json:"policy,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// DecisionLogger writes Decision records as JSON lines.
// It is safe for concurrent use. A nil DecisionLogger is safe to use;
// all methods are no-ops on nil receiver.
type DecisionLogger struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewDecisionLogger creates a decision logger writing to dir/decisions.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "decisions.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &DecisionLogger{w: f, c: f}
}

// NewDecisionWriter creates a decision logger writing to w. Close does not
// close w.
func NewDecisionWriter(w io.Writer) *DecisionLogger {
	if w == nil {
		return nil
	}
	return &DecisionLogger{w: w}
}

// Log writes d as a single JSONL line. Time is filled in when empty.
// Safe to call on nil receiver.
func (dl *DecisionLogger) Log(d Decision) {
	if dl == nil {
		return
	}
	if d.Time == "" {
		d.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.w == nil {
		return
	}
	_, _ = dl.w.Write(data)
}

// Close closes the underlying file, if the logger owns one.
// Safe to call on nil receiver.
func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.c != nil {
		dl.c.Close()
	}
	dl.w = nil
	dl.c = nil
}
