package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"imageref/internal/audit"
	"imageref/internal/platform/middleware"
	"imageref/internal/registration/models"
	dErrors "imageref/pkg/domain-errors"
	pkgtestutil "imageref/pkg/testutil"
)

func (s *ServiceSuite) TestFindByEmail() {
	ctx := context.Background()

	s.Run("returns every child for the email in ledger order", func() {
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
		event := s.captureAudit()

		result, err := s.service.FindByEmail(ctx, "  A@X.COM ")
		s.Require().NoError(err)
		s.Equal(models.OutcomeEligible, result.Outcome)
		s.Equal([]models.Child{
			{ChildName: "Asha", Age: 7, Status: models.StatusPending},
			{ChildName: "Ravi", Age: 10, Status: models.StatusPending},
		}, result.Children)
		s.Equal(string(audit.EventLookupPerformed), event.Action)
		s.Equal("eligible", event.Outcome)
	})

	s.Run("mixed statuses stay eligible and report each status", func() {
		family := pkgtestutil.Family()
		family[0].Status = " done "
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(family, nil)
		s.captureAudit()

		result, err := s.service.FindByEmail(ctx, "a@x.com")
		s.Require().NoError(err)
		s.Equal(models.OutcomeEligible, result.Outcome)
		s.Equal(models.StatusDone, result.Children[0].Status)
		s.Equal(models.StatusPending, result.Children[1].Status)
	})

	s.Run("all children done is already complete", func() {
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
		s.captureAudit()

		result, err := s.service.FindByEmail(ctx, "k@y.org")
		s.Require().NoError(err)
		s.Equal(models.OutcomeAlreadyComplete, result.Outcome)
		s.Len(result.Children, 1)
		s.True(dErrors.HasCode(result.Err(), dErrors.CodeAlreadyComplete))
	})

	s.Run("unknown email is not found", func() {
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
		s.captureAudit()

		result, err := s.service.FindByEmail(ctx, "nobody@x.com")
		s.Require().NoError(err)
		s.Equal(models.OutcomeNotFound, result.Outcome)
		s.Empty(result.Children)
	})

	s.Run("blank email is rejected without reading the ledger", func() {
		_, err := s.service.FindByEmail(ctx, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unreadable ledger propagates", func() {
		s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(nil, errors.New("disk gone"))

		_, err := s.service.FindByEmail(ctx, "a@x.com")
		s.True(dErrors.HasCode(err, dErrors.CodeLedgerUnreadable))
	})
}

func (s *ServiceSuite) TestFindByEmailCountsOutcomes() {
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil).Times(2)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(2)

	_, _ = s.service.FindByEmail(context.Background(), "a@x.com")
	_, _ = s.service.FindByEmail(context.Background(), "missing@x.com")

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Lookups.WithLabelValues("eligible")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Lookups.WithLabelValues("not_found")))
}

func (s *ServiceSuite) TestAuditCarriesRequestMetadata() {
	ctx := middleware.WithRequestID(context.Background(), "req-42")
	ctx = middleware.WithClientMetadata(ctx, middleware.ClientMetadata{IP: "10.0.0.7", Device: "Firefox 120.0 on Linux"})
	s.mockStore.EXPECT().LoadAll(gomock.Any()).Return(pkgtestutil.Family(), nil)
	event := s.captureAudit()

	_, err := s.service.FindByEmail(ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal("req-42", event.RequestID)
	s.Equal("10.0.0.0", event.ClientIP)
	s.Equal("Firefox 120.0 on Linux", event.Device)
}
