package service

import (
	"context"
	"strings"

	"imageref/internal/platform/tracer"
	"imageref/internal/registration/models"
	dErrors "imageref/pkg/domain-errors"
)

// FindByEmail returns every child registered under email with the family-wide
// gate applied. NotFound and AlreadyComplete are outcomes, not errors; only
// an unreadable ledger or a blank email fails.
func (s *Service) FindByEmail(ctx context.Context, email string) (result *models.LookupResult, err error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email is required")
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanLookup, tracer.String(tracer.AttrEmailHash, tracer.HashEmail(email)))
	defer func() { span.End(err) }()

	records, err := s.store.LoadAll(ctx)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeLedgerUnreadable, messageLedgerNotLoaded)
		s.logger.ErrorContext(ctx, "lookup failed to read ledger", "error", err)
		return nil, err
	}

	var matched []models.Record
	for _, r := range records {
		if r.MatchesEmail(email) {
			matched = append(matched, r)
		}
	}
	result = models.Classify(matched)

	span.SetAttributes(
		tracer.String(tracer.AttrOutcome, string(result.Outcome)),
		tracer.Int(tracer.AttrMatched, len(matched)),
	)
	s.observeLookup(ctx, email, result)
	return result, nil
}
