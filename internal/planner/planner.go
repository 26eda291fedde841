// Package planner decides, per document, whether a conversion is needed and
// which stored format it should start from.
package planner

import (
	"errors"
	"fmt"

	"libconv/internal/catalog"
	"libconv/internal/formats"
)

// Action is the planner's verdict for one document.
type Action int

const (
	Convert Action = iota
	SkipAlreadyPresent
	SkipNoEligibleSource
)

func (a Action) String() string {
	switch a {
	case Convert:
		return "convert"
	case SkipAlreadyPresent:
		return "skip_already_present"
	case SkipNoEligibleSource:
		return "skip_no_eligible_source"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision carries the action and, for Convert, the chosen source format.
type Decision struct {
	Action Action
	Source formats.Format
	Target formats.Format
}

// Policy is the ordered source preference and the canonical target.
type Policy struct {
	Eligible []formats.Format
	Target   formats.Format
}

// Planner applies a Policy to documents.
type Planner struct {
	policy Policy
}

// New validates policy and returns a planner for it.
func New(policy Policy) (*Planner, error) {
	if policy.Target == "" {
		return nil, errors.New("target format required")
	}
	if len(policy.Eligible) == 0 {
		return nil, errors.New("at least one eligible source format required")
	}
	seen := formats.NewSet()
	for _, f := range policy.Eligible {
		if f == policy.Target {
			return nil, fmt.Errorf("target format %s cannot also be a source", f)
		}
		if seen.Contains(f) {
			return nil, fmt.Errorf("duplicate source format %s", f)
		}
		seen.Add(f)
	}
	policy.Eligible = append([]formats.Format(nil), policy.Eligible...)
	return &Planner{policy: policy}, nil
}

// Policy returns a copy of the planner's policy.
func (p *Planner) Policy() Policy {
	out := p.policy
	out.Eligible = append([]formats.Format(nil), p.policy.Eligible...)
	return out
}

// Plan returns the decision for doc. A document that already stores the
// target is never reconverted; otherwise the first eligible format in
// preference order wins.
func (p *Planner) Plan(doc catalog.Document) Decision {
	decision := Decision{Target: p.policy.Target}
	if doc.Formats.Contains(p.policy.Target) {
		decision.Action = SkipAlreadyPresent
		return decision
	}
	for _, candidate := range p.policy.Eligible {
		if doc.Formats.Contains(candidate) {
			decision.Action = Convert
			decision.Source = candidate
			return decision
		}
	}
	decision.Action = SkipNoEligibleSource
	return decision
}
