// Package report carries non-fatal failures from the sync layer to callers.
// Nothing in the sync layer aborts a session on error; instead each failure is
// delivered to a Sink so that tests and callers can assert on it.
package report

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a failure.
type Kind string

const (
	KindFetch       Kind = "fetch"
	KindConsistency Kind = "consistency"
	KindEnrichment  Kind = "enrichment"
	KindPersist     Kind = "persist"
	KindCommand     Kind = "command"
	KindDecode      Kind = "decode"
)

// Failure is a single recoverable error with enough context to act on it.
type Failure struct {
	Kind   Kind
	Op     string
	Entity string
	ID     string
	Err    error
}

func (f Failure) Error() string {
	if f.ID != "" {
		return fmt.Sprintf("%s %s %s %s: %v", f.Kind, f.Op, f.Entity, f.ID, f.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", f.Kind, f.Op, f.Entity, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Sink receives failures.
type Sink interface {
	Report(f Failure)
}

// Discard drops every failure.
type Discard struct{}

func (Discard) Report(Failure) {}

// Collector keeps failures in memory. Safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	failures []Failure
}

func (c *Collector) Report(f Failure) {
	c.mu.Lock()
	c.failures = append(c.failures, f)
	c.mu.Unlock()
}

// Failures returns a copy of the collected failures.
func (c *Collector) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	return out
}

// ByKind returns the collected failures of kind k.
func (c *Collector) ByKind(k Kind) []Failure {
	var out []Failure
	for _, f := range c.Failures() {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

// LogSink writes failures to a zap logger at warn level.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Report(f Failure) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn("sync failure",
		zap.String("kind", string(f.Kind)),
		zap.String("op", f.Op),
		zap.String("entity", f.Entity),
		zap.String("id", f.ID),
		zap.Error(f.Err),
	)
}

// Multi fans a failure out to every non-nil sink.
type Multi []Sink

func (m Multi) Report(f Failure) {
	for _, s := range m {
		if s != nil {
			s.Report(f)
		}
	}
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard{}
	}
	return s
}
