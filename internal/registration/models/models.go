package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// Status is the submission state of a record. The ledger stores it verbatim;
// only StatusDone (compared case-insensitively) counts as complete.
type Status string

const (
	StatusPending Status = "Pending"
	StatusDone    Status = "Done"
)

// IsDone reports whether s marks a completed submission.
func (s Status) IsDone() bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(StatusDone))
}

// Normalized maps any stored value onto Pending or Done for API responses.
func (s Status) Normalized() Status {
	if s.IsDone() {
		return StatusDone
	}
	return StatusPending
}

// Record is one registered child. Fields mirror the ledger columns; Extra
// carries any columns outside the fixed set so rewrites do not lose them.
type Record struct {
	ChildName      string
	ParentName     string
	DateOfBirth    string
	Age            int
	Gender         string
	EducationBoard string
	Grade          string
	Section        string
	CountryCode    string
	PhoneNumber    string
	Email          string
	RegistrationID string
	Status         Status

	// AgeCell is the Age cell as read when it differs from the canonical
	// rendering of Age ("07", " 8 ", "0"). It is written back while Age is
	// unchanged.
	AgeCell string

	Extra map[string]string
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	if r.Extra != nil {
		out.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// MatchesEmail compares emails after trimming and Unicode case folding.
func (r Record) MatchesEmail(email string) bool {
	return NormalizeKey(r.Email) == NormalizeKey(email)
}

// MatchesChild reports whether r is addressed by the (email, child name) tuple.
func (r Record) MatchesChild(email, childName string) bool {
	return r.MatchesEmail(email) && NormalizeKey(r.ChildName) == NormalizeKey(childName)
}

// NormalizeKey trims and case-folds a matching key. Casers are stateful, so
// each call builds its own.
func NormalizeKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// CloneAll deep-copies a record slice.
func CloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
