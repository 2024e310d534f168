package service

import (
	"context"
	"time"

	"imageref/internal/audit"
	"imageref/internal/platform/middleware"
	"imageref/internal/platform/privacy"
	"imageref/internal/registration/models"
	dErrors "imageref/pkg/domain-errors"
)

const outcomeCompleted = "completed"

func (s *Service) observeLookup(ctx context.Context, email string, result *models.LookupResult) {
	if s.metrics != nil {
		s.metrics.IncrementLookup(string(result.Outcome))
	}
	s.logger.InfoContext(ctx, "registration lookup",
		"request_id", middleware.GetRequestID(ctx),
		"outcome", result.Outcome,
		"children", len(result.Children),
	)
	s.emit(ctx, audit.Event{
		Action:  string(audit.EventLookupPerformed),
		Email:   email,
		Outcome: string(result.Outcome),
	})
}

func (s *Service) observeSubmission(ctx context.Context, req models.SubmitRequest, result *models.SubmissionResult, err error, elapsed time.Duration) {
	outcome := outcomeCompleted
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}

	if s.metrics != nil {
		s.metrics.IncrementSubmission(outcome)
		s.metrics.ObserveSubmissionLatency(elapsed.Seconds())
		if err == nil {
			s.metrics.IncrementCategory(string(result.Category))
		}
	}

	event := audit.Event{
		Action:    string(audit.EventSubmissionCompleted),
		Email:     req.Email,
		ChildName: req.ChildName,
		Outcome:   outcome,
	}
	if result != nil {
		event.Category = string(result.Category)
		event.FileName = result.FileName
	}

	if err != nil {
		event.Action = string(audit.EventSubmissionFailed)
		event.Reason = err.Error()
		s.logger.WarnContext(ctx, "submission rejected",
			"request_id", middleware.GetRequestID(ctx),
			"email", privacy.MaskEmail(req.Email),
			"outcome", outcome,
			"error", err,
		)
	} else {
		s.logger.InfoContext(ctx, "submission completed",
			"request_id", middleware.GetRequestID(ctx),
			"category", result.Category,
			"file", result.FileName,
			"updated", result.Updated,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	s.emit(ctx, event)
}

// emit stamps request metadata from ctx onto the event.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	md := middleware.GetClientMetadata(ctx)
	event.RequestID = middleware.GetRequestID(ctx)
	event.ClientIP = privacy.AnonymizeIP(md.IP)
	event.Device = md.Device
	s.auditor.Emit(ctx, event)
}
