package httputil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	dErrors "imageref/pkg/domain-errors"
)

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// Sanitizable is implemented by request types that support sanitization.
type Sanitizable interface {
	Sanitize()
}

// PrepareRequest sanitizes, normalizes, and validates a request.
func PrepareRequest(req any) error {
	if s, ok := req.(Sanitizable); ok {
		s.Sanitize()
	}
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// Prepare runs PrepareRequest on a request built from query or form values.
// On failure it writes the error response and returns false.
//
// Usage:
//
//	if !httputil.Prepare(ctx, w, h.logger, requestID, &req) {
//	    return
//	}
func Prepare(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, requestID string, req any) bool {
	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		// Preserve original error code if it's already a domain error
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		}
		return false
	}
	return true
}
