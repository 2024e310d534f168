package service

import (
	"context"
	"strings"
	"time"

	"imageref/internal/mirror"
	"imageref/internal/platform/tracer"
	"imageref/internal/registration/models"
	"imageref/internal/storage"
	dErrors "imageref/pkg/domain-errors"
)

const (
	messageChildNotFound   = "No registration matches this child name and email."
	messageChildSubmitted  = "An image has already been submitted for this child."
	messageStorageFailed   = "The image could not be stored, please try again."
	messageLedgerNotSaved  = "The image was stored but the registration could not be updated."
	messageLedgerNotLoaded = "registration ledger is unavailable"
)

// Submit stores one child's image and marks the child's registration Done.
//
// Validation and the eligibility gate run before any file is moved; a
// rejected upload is discarded. Once the file is placed it is never removed
// and is queued for mirroring whatever the ledger outcome: a ledger failure
// returns the result alongside a CodeLedgerWriteFailed error so callers can
// report where the file landed.
func (s *Service) Submit(ctx context.Context, req models.SubmitRequest) (result *models.SubmissionResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanSubmit, tracer.String(tracer.AttrEmailHash, tracer.HashEmail(req.Email)))
	defer func() {
		span.End(err)
		s.observeSubmission(ctx, req, result, err, time.Since(start))
	}()

	category, err := validateSubmission(req)
	if err != nil {
		s.files.Discard(req.Upload)
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrCategory, string(category)))

	if err = s.checkEligible(ctx, req.Email, req.ChildName); err != nil {
		s.files.Discard(req.Upload)
		return nil, err
	}

	placed, err := s.place(ctx, req, category)
	if err != nil {
		s.files.Discard(req.Upload)
		return nil, err
	}
	result = &models.SubmissionResult{
		Category: category,
		FileName: placed.Name,
		FilePath: placed.Path,
	}

	// The file has moved; the ledger write, mirror job and audit event must
	// not be abandoned by a client disconnect or route timeout.
	ctx = context.WithoutCancel(ctx)
	s.enqueueMirror(ctx, placed, category)

	updated, err := s.markDone(ctx, req.Email, req.ChildName)
	if err != nil {
		err = &dErrors.Error{Code: dErrors.CodeLedgerWriteFailed, Message: messageLedgerNotSaved, Err: err}
		s.logger.ErrorContext(ctx, "ledger update failed after storing image",
			"file", placed.Path,
			"error", err,
		)
		return result, err
	}
	result.Updated = updated
	span.SetAttributes(tracer.Int(tracer.AttrUpdated, updated))
	return result, nil
}

func validateSubmission(req models.SubmitRequest) (models.Category, error) {
	if strings.TrimSpace(req.ChildName) == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "childName is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	if req.Upload.Path == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "file is required")
	}
	return models.BucketFor(req.Age)
}

// checkEligible requires at least one record for (email, childName) that is
// not yet Done.
func (s *Service) checkEligible(ctx context.Context, email, childName string) error {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeLedgerUnreadable, messageLedgerNotLoaded)
	}
	found := false
	for _, r := range records {
		if !r.MatchesChild(email, childName) {
			continue
		}
		if !r.Status.IsDone() {
			return nil
		}
		found = true
	}
	if found {
		return dErrors.New(dErrors.CodeAlreadyComplete, messageChildSubmitted)
	}
	return dErrors.New(dErrors.CodeNotFound, messageChildNotFound)
}

func (s *Service) place(ctx context.Context, req models.SubmitRequest, category models.Category) (storage.Placed, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanStoragePlace, tracer.String(tracer.AttrCategory, string(category)))
	placed, err := s.files.Place(ctx, req.Upload, category, req.ChildName, req.Email)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeStorageMoveFailed, messageStorageFailed)
		s.logger.ErrorContext(ctx, "failed to place upload",
			"category", category,
			"upload", req.Upload.Path,
			"error", err,
		)
	}
	span.End(err)
	return placed, err
}

// markDone flips every pending record for (email, childName) to Done inside
// one serialized ledger update. Zero means someone else finished first.
func (s *Service) markDone(ctx context.Context, email, childName string) (int, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLedgerUpdate)
	updated := 0
	err := s.store.Update(ctx, func(records []models.Record) (bool, error) {
		updated = 0
		for i := range records {
			if records[i].MatchesChild(email, childName) && !records[i].Status.IsDone() {
				records[i].Status = models.StatusDone
				updated++
			}
		}
		return updated > 0, nil
	})
	span.End(err)
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (s *Service) enqueueMirror(ctx context.Context, placed storage.Placed, category models.Category) {
	if s.mirror == nil {
		return
	}
	job := mirror.Job{FilePath: placed.Path, FileName: placed.Name, Category: string(category)}
	if err := s.mirror.Enqueue(job); err != nil {
		s.logger.WarnContext(ctx, "mirror job not queued", "file", placed.Name, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "mirror job queued", "file", placed.Name)
}
