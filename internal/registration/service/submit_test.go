package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"imageref/internal/audit"
	"imageref/internal/mirror"
	"imageref/internal/registration/models"
	"imageref/internal/registration/store"
	"imageref/internal/storage"
	dErrors "imageref/pkg/domain-errors"
	"imageref/pkg/platform/sentinel"
	pkgtestutil "imageref/pkg/testutil"
)

var ashaUpload = models.Upload{Path: "/incoming/123-abc.png", OriginalName: "drawing.png", Size: 42}

func ashaRequest() models.SubmitRequest {
	return models.SubmitRequest{ChildName: "Asha", Email: "a@x.com", Age: 7, Upload: ashaUpload}
}

var ashaPlaced = storage.Placed{Path: "/uploads/5-8/asha_a@x.com.png", Name: "asha_a@x.com.png"}

func (s *ServiceSuite) TestSubmitSuccess() {
	ctx := context.Background()
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), ashaUpload, models.Category5To8, "Asha", "a@x.com").Return(ashaPlaced, nil)
	ledger := s.expectUpdate(pkgtestutil.Family())
	s.mockMirror.EXPECT().Enqueue(mirror.Job{FilePath: ashaPlaced.Path, FileName: ashaPlaced.Name, Category: "5-8"}).Return(nil)
	event := s.captureAudit()

	result, err := s.service.Submit(ctx, ashaRequest())
	s.Require().NoError(err)
	s.Equal(&models.SubmissionResult{
		Category: models.Category5To8,
		FileName: ashaPlaced.Name,
		FilePath: ashaPlaced.Path,
		Updated:  1,
	}, result)

	s.Run("only the submitted child changes", func() {
		s.Equal(models.StatusDone, (*ledger)[0].Status)
		s.Equal(models.StatusPending, (*ledger)[1].Status)
		s.Equal(models.StatusDone, (*ledger)[2].Status)
	})
	s.Run("audit and metrics record the completion", func() {
		s.Equal(string(audit.EventSubmissionCompleted), event.Action)
		s.Equal("5-8", event.Category)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Submissions.WithLabelValues("completed")))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.SubmissionsByCategory.WithLabelValues("5-8")))
	})
}

func (s *ServiceSuite) TestSubmitMatchesCaseInsensitively() {
	req := ashaRequest()
	req.ChildName = "  ASHA "
	req.Email = "A@X.com"
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), ashaUpload, models.Category5To8, req.ChildName, req.Email).Return(ashaPlaced, nil)
	ledger := s.expectUpdate(pkgtestutil.Family())
	s.mockMirror.EXPECT().Enqueue(gomock.Any()).Return(nil)
	s.captureAudit()

	result, err := s.service.Submit(context.Background(), req)
	s.Require().NoError(err)
	s.Equal(1, result.Updated)
	s.Equal(models.StatusDone, (*ledger)[0].Status)
}

func (s *ServiceSuite) TestSubmitRejectsInvalidAgeBeforeIO() {
	for _, age := range []int{-1, 0, 4, 16, 99} {
		s.mockFiles.EXPECT().Discard(ashaUpload)
		event := s.captureAudit()

		req := ashaRequest()
		req.Age = age
		result, err := s.service.Submit(context.Background(), req)

		s.Nil(result)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAge), "age %d", age)
		s.Equal(string(audit.EventSubmissionFailed), event.Action)
		s.Equal("invalid_age", event.Outcome)
	}
}

func (s *ServiceSuite) TestSubmitRequiresFields() {
	tests := []struct {
		name   string
		mutate func(*models.SubmitRequest)
	}{
		{"missing child name", func(r *models.SubmitRequest) { r.ChildName = " " }},
		{"missing email", func(r *models.SubmitRequest) { r.Email = "" }},
		{"missing file", func(r *models.SubmitRequest) { r.Upload = models.Upload{} }},
	}
	for _, tt := range tests {
		tt := tt
		s.Run(tt.name, func() {
			req := ashaRequest()
			tt.mutate(&req)
			s.mockFiles.EXPECT().Discard(req.Upload)
			s.captureAudit()

			_, err := s.service.Submit(context.Background(), req)
			s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}

func (s *ServiceSuite) TestSubmitEligibilityGate() {
	s.Run("unknown child is not found and the upload is discarded", func() {
		req := ashaRequest()
		req.ChildName = "Meera"
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
		s.mockFiles.EXPECT().Discard(ashaUpload)
		s.captureAudit()

		_, err := s.service.Submit(context.Background(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("child already done is rejected", func() {
		req := models.SubmitRequest{ChildName: "Kabir", Email: "k@y.org", Age: 13, Upload: ashaUpload}
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
		s.mockFiles.EXPECT().Discard(ashaUpload)
		s.captureAudit()

		_, err := s.service.Submit(context.Background(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyComplete))
	})

	s.Run("unreadable ledger", func() {
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(nil,
			dErrors.Wrap(sentinel.ErrMalformed, dErrors.CodeLedgerUnreadable, "bad header"))
		s.mockFiles.EXPECT().Discard(ashaUpload)
		s.captureAudit()

		_, err := s.service.Submit(context.Background(), ashaRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeLedgerUnreadable))
		s.ErrorIs(err, sentinel.ErrMalformed)
	})
}

func (s *ServiceSuite) TestSubmitStorageFailureLeavesLedgerAlone() {
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(storage.Placed{}, errors.New("cross-device link"))
	s.mockFiles.EXPECT().Discard(ashaUpload)
	s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
	s.captureAudit()

	result, err := s.service.Submit(context.Background(), ashaRequest())
	s.Nil(result)
	s.True(dErrors.HasCode(err, dErrors.CodeStorageMoveFailed))
}

func (s *ServiceSuite) TestSubmitLedgerFailureKeepsFile() {
	writeErr := dErrors.Wrap(errors.New("read-only file system"), dErrors.CodeLedgerWriteFailed, "rename")
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ashaPlaced, nil)
	s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any()).Return(writeErr)
	s.mockMirror.EXPECT().Enqueue(mirror.Job{FilePath: ashaPlaced.Path, FileName: ashaPlaced.Name, Category: "5-8"}).Return(nil)
	event := s.captureAudit()

	result, err := s.service.Submit(context.Background(), ashaRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeLedgerWriteFailed))
	s.Require().NotNil(result, "stored path is reported")
	s.Equal(ashaPlaced.Path, result.FilePath)
	s.Equal(0, result.Updated)
	s.Equal("ledger_write_failed", event.Outcome)
	s.Equal(ashaPlaced.Name, event.FileName)
}

func (s *ServiceSuite) TestSubmitLedgerLoadFailureInsideUpdateIsWriteFailure() {
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ashaPlaced, nil)
	s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any()).
		Return(dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeLedgerUnreadable, "ledger vanished"))
	s.mockMirror.EXPECT().Enqueue(gomock.Any()).Return(nil)
	s.captureAudit()

	_, err := s.service.Submit(context.Background(), ashaRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeLedgerWriteFailed))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestSubmitIsIdempotentWhenAnotherSubmissionWon() {
	// the pre-check saw Pending, but by the time of the update Asha is Done
	done := pkgtestutil.Family()
	done[0].Status = models.StatusDone

	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ashaPlaced, nil)
	ledger := s.expectUpdate(done)
	s.mockMirror.EXPECT().Enqueue(gomock.Any()).Return(nil)
	s.captureAudit()

	result, err := s.service.Submit(context.Background(), ashaRequest())
	s.Require().NoError(err)
	s.Equal(0, result.Updated)
	s.Equal(done, *ledger)
}

func (s *ServiceSuite) TestSubmitSucceedsWhenMirrorRefusesJob() {
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ashaPlaced, nil)
	s.expectUpdate(pkgtestutil.Family())
	s.mockMirror.EXPECT().Enqueue(gomock.Any()).Return(sentinel.ErrQueueFull)
	s.captureAudit()

	result, err := s.service.Submit(context.Background(), ashaRequest())
	s.Require().NoError(err)
	s.Equal(1, result.Updated)
}

func (s *ServiceSuite) TestSubmitWithoutOptionalCollaborators() {
	svc := New(s.mockStore, s.mockFiles, WithLogger(pkgtestutil.DiscardLogger()))
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ashaPlaced, nil)
	s.expectUpdate(pkgtestutil.Family())

	_, err := svc.Submit(context.Background(), ashaRequest())
	s.NoError(err)
}

func (s *ServiceSuite) TestSubmitFinishesLedgerUpdateAfterCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	s.mockFiles.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.Upload, models.Category, string, string) (storage.Placed, error) {
			cancel()
			return ashaPlaced, nil
		})
	ledger := pkgtestutil.Family()
	s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(updateCtx context.Context, fn store.MutateFunc) error {
			s.Require().NoError(updateCtx.Err())
			_, err := fn(ledger)
			return err
		})
	s.mockMirror.EXPECT().Enqueue(gomock.Any()).Return(nil)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Do(func(emitCtx context.Context, _ audit.Event) {
		s.NoError(emitCtx.Err())
	})

	result, err := s.service.Submit(ctx, ashaRequest())
	s.Require().NoError(err)
	s.Equal(1, result.Updated)
	s.Equal(models.StatusDone, ledger[0].Status)
}
