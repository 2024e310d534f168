// Package tracer is a small tracing interface so services can emit spans
// without importing OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashEmail returns a short stable digest of a normalized email so traces
// can be correlated without carrying the address itself.
func HashEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:8])
}

// Span names.
const (
	SpanLookup       = "registration.lookup"
	SpanSubmit       = "registration.submit"
	SpanLedgerUpdate = "registration.ledger.update"
	SpanStoragePlace = "storage.place"
)

// Attribute keys.
const (
	AttrEmailHash = "email_hash"
	AttrOutcome   = "outcome"
	AttrMatched   = "matched_records"
	AttrCategory  = "category"
	AttrUpdated   = "ledger.updated"
)

// Event names.
const (
	EventMirrorEnqueued = "mirror.enqueued"
	EventMirrorDropped  = "mirror.dropped"
)
