package models

import (
	dErrors "imageref/pkg/domain-errors"
)

// LookupOutcome classifies the records matched by an email.
type LookupOutcome string

const (
	OutcomeNotFound        LookupOutcome = "not_found"
	OutcomeAlreadyComplete LookupOutcome = "already_complete"
	OutcomeEligible        LookupOutcome = "eligible"
)

// Child is the public view of a matched record.
type Child struct {
	ChildName string `json:"childName"`
	Age       int    `json:"age"`
	Status    Status `json:"status"`
}

// LookupResult is the family-wide view for one email. Children is populated
// for every outcome except NotFound, in ledger order.
type LookupResult struct {
	Outcome  LookupOutcome
	Children []Child
}

// Classify applies the status gate to the records matched by one email:
// no match is NotFound, all Done is AlreadyComplete, anything else is
// Eligible with the full matched set.
func Classify(matched []Record) *LookupResult {
	if len(matched) == 0 {
		return &LookupResult{Outcome: OutcomeNotFound}
	}
	children := make([]Child, 0, len(matched))
	allDone := true
	for _, r := range matched {
		if !r.Status.IsDone() {
			allDone = false
		}
		children = append(children, Child{
			ChildName: r.ChildName,
			Age:       r.Age,
			Status:    r.Status.Normalized(),
		})
	}
	outcome := OutcomeEligible
	if allDone {
		outcome = OutcomeAlreadyComplete
	}
	return &LookupResult{Outcome: outcome, Children: children}
}

// Err converts a gating outcome into its domain error; Eligible yields nil.
func (r *LookupResult) Err() error {
	switch r.Outcome {
	case OutcomeNotFound:
		return dErrors.New(dErrors.CodeNotFound, MessageNotFound)
	case OutcomeAlreadyComplete:
		return dErrors.New(dErrors.CodeAlreadyComplete, MessageAlreadyComplete)
	default:
		return nil
	}
}

// User-facing messages for the gating outcomes.
const (
	MessageNotFound        = "Email not used to register, please try again."
	MessageAlreadyComplete = "Images have already been submitted for every child registered with this email."
)
