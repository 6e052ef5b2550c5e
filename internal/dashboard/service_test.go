package dashboard_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"complyd/internal/dashboard"
	"complyd/internal/records/models"
	"complyd/internal/records/store"
	"complyd/pkg/domain"
	"complyd/pkg/requestcontext"
)

type DashboardSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *store.InMemory
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = store.NewInMemory()
}

func (s *DashboardSuite) newService(ttl time.Duration) *dashboard.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return dashboard.New(s.store, dashboard.NewMemoryCache(), ttl, logger)
}

func (s *DashboardSuite) seed(kind models.Kind, severity models.Severity, targetDate *time.Time) {
	record, err := models.NewRecord(domain.NewRecordID(), kind, "seeded record", "", "general", s.now)
	s.Require().NoError(err)
	record.Severity = severity
	record.TargetDate = targetDate
	if kind == models.KindVendor {
		record.Vendor = &models.VendorDetails{NextAssessmentDate: s.now.Add(30 * 24 * time.Hour)}
	}
	s.Require().NoError(s.store.Create(s.ctx, record))
}

func (s *DashboardSuite) TestSummaryCounts() {
	overdue := s.now.Add(-48 * time.Hour)
	s.seed(models.KindFinding, models.SeverityCritical, &overdue)
	s.seed(models.KindFinding, models.SeverityHigh, nil)
	s.seed(models.KindRisk, models.SeverityMedium, nil)
	s.seed(models.KindVendor, "", nil)

	summary, err := s.newService(time.Minute).Summary(s.ctx)
	s.Require().NoError(err)

	s.Equal(4, summary.Total)
	s.Equal(2, summary.ByKind["finding"]["open"])
	s.Equal(1, summary.ByKind["risk"]["identified"])
	s.Equal(1, summary.BySeverity["critical"])
	s.Equal(1, summary.BySeverity["high"])
	s.Equal(1, summary.Overdue["finding"])
	s.Equal(s.now, summary.GeneratedAt)
}

func (s *DashboardSuite) TestCrossLayerRiskBuckets() {
	// Three critical records: 3 * 5.0 * 1.5 = 22.5, which lands in the
	// medium band.
	for range 3 {
		s.seed(models.KindFinding, models.SeverityCritical, nil)
	}

	summary, err := s.newService(time.Minute).Summary(s.ctx)
	s.Require().NoError(err)

	s.InDelta(22.5, summary.CrossLayer.Total, 0.0001)
	s.Equal("medium", summary.CrossLayer.Level)
	s.Require().Len(summary.CrossLayer.Layers, 4)
	s.Equal("critical", summary.CrossLayer.Layers[0].Severity)
	s.Equal(3, summary.CrossLayer.Layers[0].Count)
	s.InDelta(22.5, summary.CrossLayer.Layers[0].Contribution, 0.0001)
}

func (s *DashboardSuite) TestEmptyStoreIsMinimal() {
	summary, err := s.newService(time.Minute).Summary(s.ctx)
	s.Require().NoError(err)
	s.Zero(summary.Total)
	s.Zero(summary.CrossLayer.Total)
	s.Equal("minimal", summary.CrossLayer.Level)
}

func (s *DashboardSuite) TestCachedSummaryServedWithinTTL() {
	service := s.newService(time.Minute)

	first, err := service.Summary(s.ctx)
	s.Require().NoError(err)
	s.Zero(first.Total)

	s.seed(models.KindRisk, models.SeverityLow, nil)

	second, err := service.Summary(s.ctx)
	s.Require().NoError(err)
	s.Zero(second.Total, "summary inside the TTL must come from cache")
}

func (s *DashboardSuite) TestCacheExpiryRecomputes() {
	service := s.newService(time.Millisecond)

	_, err := service.Summary(s.ctx)
	s.Require().NoError(err)

	s.seed(models.KindRisk, models.SeverityLow, nil)
	time.Sleep(5 * time.Millisecond)

	refreshed, err := service.Summary(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, refreshed.Total)
}
