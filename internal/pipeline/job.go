package pipeline

import (
	"libconv/internal/catalog"
	"libconv/internal/formats"
)

// State is a document's position in the per-run state machine.
type State string

const (
	StateDiscovered            State = "discovered"
	StatePlanned               State = "planned"
	StateConverting            State = "converting"
	StateConverted             State = "converted"
	StateRegistering           State = "registering"
	StateRegistered            State = "registered"
	StateSkippedAlreadyPresent State = "skipped_already_present"
	StateSkippedNoSource       State = "skipped_no_source"
	StateError                 State = "error"
)

// Terminal reports whether no further transitions follow s within a run.
func (s State) Terminal() bool {
	switch s {
	case StateRegistered, StateSkippedAlreadyPresent, StateSkippedNoSource, StateError:
		return true
	default:
		return false
	}
}

// Outcome is the result of one conversion attempt.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Stage names recorded on failures.
const (
	StageResolving   = "resolving"
	StageConverting  = "converting"
	StageRegistering = "registering"
)

// ConversionJob describes one attempted conversion. It lives only for the
// duration of the attempt.
type ConversionJob struct {
	DocumentID string
	Source     formats.Format
	Target     formats.Format
	SourcePath string
	OutputPath string
	Resolution catalog.ResolutionMethod
	State      State
	Outcome    Outcome
	Message    string
}

func (j *ConversionJob) fail(message string) {
	j.State = StateError
	j.Outcome = OutcomeFailed
	j.Message = message
}
