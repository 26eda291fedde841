package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Failure records a document that ended in the error state.
type Failure struct {
	DocumentID string
	Title      string
	Stage      string
	Kind       string
	Message    string
}

// Summary aggregates one run's outcomes.
type Summary struct {
	RunID                 string
	Converted             int
	SkippedAlreadyPresent int
	SkippedNoSource       int
	Errored               int
	// Rejected counts catalog records that could not be decoded.
	Rejected    int
	Interrupted bool
	// LimitReached is set when the run stopped because Options.Limit was hit.
	LimitReached bool
	Failures     []Failure
	Duration     time.Duration
}

// Skipped totals both skip reasons.
func (s Summary) Skipped() int {
	return s.SkippedAlreadyPresent + s.SkippedNoSource
}

// Processed totals documents that reached a terminal state.
func (s Summary) Processed() int {
	return s.Converted + s.Skipped() + s.Errored
}

// String renders the summary line operators read after every run.
func (s Summary) String() string {
	return fmt.Sprintf("converted=%d skipped=%d errored=%d", s.Converted, s.Skipped(), s.Errored)
}

// Detail extends String with skip reasons, rejected records, and run state.
func (s Summary) Detail() string {
	var b strings.Builder
	b.WriteString(s.String())
	fmt.Fprintf(&b, " (already_present=%d no_source=%d) rejected=%d duration=%s",
		s.SkippedAlreadyPresent, s.SkippedNoSource, s.Rejected, s.Duration.Round(time.Millisecond))
	if s.LimitReached {
		b.WriteString(" limit_reached")
	}
	if s.Interrupted {
		b.WriteString(" interrupted")
	}
	return b.String()
}
