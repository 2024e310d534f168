package audit

import "time"

// Event records a lookup or submission. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Action         string    `json:"action"`
	Email          string    `json:"email"`
	ChildName      string    `json:"childName,omitempty"`
	RegistrationID string    `json:"registrationId,omitempty"`
	Category       string    `json:"category,omitempty"`
	FileName       string    `json:"fileName,omitempty"`
	Outcome        string    `json:"outcome"`
	Reason         string    `json:"reason,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	ClientIP       string    `json:"clientIp,omitempty"`
	Device         string    `json:"device,omitempty"`
}

type AuditEvent string

const (
	EventLookupPerformed     AuditEvent = "lookup_performed"
	EventSubmissionCompleted AuditEvent = "submission_completed"
	EventSubmissionFailed    AuditEvent = "submission_failed"
)
