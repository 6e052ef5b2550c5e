//go:build integration

package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"complyd/internal/platform/postgres"
	"complyd/internal/records/models"
	"complyd/internal/records/store"
	"complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
	"complyd/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx       context.Context
	container *containers.PostgresContainer
	store     *store.Postgres
	now       time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewPostgresContainer(s.T())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Require().NoError(postgres.Migrate(s.ctx, s.container.DB, log))

	s.store = store.NewPostgres(s.container.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.container.TruncateAll(s.ctx))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) newRecord(kind models.Kind, title string, createdAt time.Time) *models.Record {
	record, err := models.NewRecord(domain.NewRecordID(), kind, title, "", "general", createdAt)
	s.Require().NoError(err)
	return record
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	record := s.newRecord(models.KindRisk, "Vendor lock-in", s.now)
	record.Description = "Single supplier for payment rails"
	record.Severity = models.SeverityHigh
	record.Owner = "treasury"
	record.Tags = []string{"payments", "third-party"}
	record.Risk = &models.RiskDetails{Likelihood: 4, Impact: 5}
	target := s.now.Add(30 * 24 * time.Hour)
	record.TargetDate = &target

	s.Require().NoError(s.store.Create(s.ctx, record))

	found, err := s.store.FindByID(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(record.ID, found.ID)
	s.Equal(models.KindRisk, found.Kind)
	s.Equal("Vendor lock-in", found.Title)
	s.Equal(models.SeverityHigh, found.Severity)
	s.Equal([]string{"payments", "third-party"}, []string(found.Tags))
	s.Require().NotNil(found.Risk)
	s.Equal(4, found.Risk.Likelihood)
	s.Equal(5, found.Risk.Impact)
	s.Require().NotNil(found.TargetDate)
	s.True(found.TargetDate.Equal(target))
	s.True(found.CreatedAt.Equal(s.now))

	s.Run("duplicate id conflicts", func() {
		s.ErrorIs(s.store.Create(s.ctx, record), sentinel.ErrConflict)
	})

	s.Run("unknown id not found", func() {
		_, err := s.store.FindByID(s.ctx, domain.NewRecordID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestFindExcludesDeleted() {
	record := s.newRecord(models.KindVendor, "Acme Corp", s.now)
	s.Require().NoError(s.store.Create(s.ctx, record))

	_, err := s.store.Execute(s.ctx, record.ID, func(r *models.Record) error {
		r.ApplyDelete(s.now)
		return nil
	})
	s.Require().NoError(err)

	_, err = s.store.FindByID(s.ctx, record.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFiltersAndSearch() {
	bank := s.newRecord(models.KindVendor, "Test Bank Corp", s.now)
	acme := s.newRecord(models.KindVendor, "Acme Payments", s.now.Add(time.Minute))
	finding := s.newRecord(models.KindFinding, "Stale credentials", s.now.Add(2*time.Minute))
	finding.Severity = models.SeverityHigh
	finding.Tags = []string{"iam", "quarterly-review"}
	for _, r := range []*models.Record{bank, acme, finding} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	s.Run("search matches title substring only", func() {
		records, total, err := s.store.List(s.ctx, store.Filter{Search: "Test"})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Require().Len(records, 1)
		s.Equal("Test Bank Corp", records[0].Title)
	})

	s.Run("search is case-insensitive", func() {
		records, _, err := s.store.List(s.ctx, store.Filter{Search: "acme"})
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("Acme Payments", records[0].Title)
	})

	s.Run("search reaches tags", func() {
		records, _, err := s.store.List(s.ctx, store.Filter{Search: "quarterly"})
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("Stale credentials", records[0].Title)
	})

	s.Run("kind and severity filters are conjunctive", func() {
		_, total, err := s.store.List(s.ctx, store.Filter{
			Kind:     models.KindFinding,
			Severity: models.SeverityHigh,
		})
		s.Require().NoError(err)
		s.Equal(1, total)

		_, total, err = s.store.List(s.ctx, store.Filter{
			Kind:     models.KindVendor,
			Severity: models.SeverityHigh,
		})
		s.Require().NoError(err)
		s.Zero(total)
	})

	s.Run("newest first", func() {
		records, total, err := s.store.List(s.ctx, store.Filter{})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Require().Len(records, 3)
		s.Equal("Stale credentials", records[0].Title)
		s.Equal("Test Bank Corp", records[2].Title)
	})

	s.Run("pagination returns full total", func() {
		records, total, err := s.store.List(s.ctx, store.Filter{Page: 2, PageSize: 2})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Require().Len(records, 1)
		s.Equal("Test Bank Corp", records[0].Title)
	})

	s.Run("page past end still reports total", func() {
		records, total, err := s.store.List(s.ctx, store.Filter{Page: 5, PageSize: 2})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Empty(records)
	})
}

func (s *PostgresStoreSuite) TestExecuteCommitsOnlyOnSuccess() {
	record := s.newRecord(models.KindFinding, "Unpatched host", s.now)
	s.Require().NoError(s.store.Create(s.ctx, record))

	s.Run("failed callback leaves record untouched", func() {
		_, err := s.store.Execute(s.ctx, record.ID, func(r *models.Record) error {
			r.Title = "half-applied"
			return errors.New("audit append failed")
		})
		s.Require().Error(err)

		found, findErr := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(findErr)
		s.Equal("Unpatched host", found.Title)
		s.Equal(1, found.Version)
	})

	s.Run("successful callback commits", func() {
		updated, err := s.store.Execute(s.ctx, record.ID, func(r *models.Record) error {
			title := "Unpatched host (triaged)"
			r.ApplyUpdate(models.Patch{Title: &title}, s.now)
			return nil
		})
		s.Require().NoError(err)
		s.Equal(2, updated.Version)

		found, err := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal("Unpatched host (triaged)", found.Title)
	})
}

func (s *PostgresStoreSuite) TestExecuteDetectsStaleVersion() {
	record := s.newRecord(models.KindFinding, "Race target", s.now)
	s.Require().NoError(s.store.Create(s.ctx, record))

	// A concurrent writer bumps the version after Execute has read its
	// snapshot; the conditional UPDATE must refuse to overwrite.
	_, err := s.store.Execute(s.ctx, record.ID, func(r *models.Record) error {
		_, execErr := s.container.DB.ExecContext(s.ctx,
			"UPDATE records SET version = version + 1 WHERE id = $1", uuid.UUID(record.ID))
		s.Require().NoError(execErr)

		title := "lost the race"
		r.ApplyUpdate(models.Patch{Title: &title}, s.now)
		return nil
	})
	s.ErrorIs(err, sentinel.ErrStaleVersion)

	found, findErr := s.store.FindByID(s.ctx, record.ID)
	s.Require().NoError(findErr)
	s.Equal("Race target", found.Title)
	s.Equal(2, found.Version)
}

func (s *PostgresStoreSuite) TestAggregate() {
	overdueTarget := s.now.Add(-24 * time.Hour)

	finding := s.newRecord(models.KindFinding, "Overdue finding", s.now)
	finding.Severity = models.SeverityCritical
	finding.TargetDate = &overdueTarget

	risk := s.newRecord(models.KindRisk, "Vendor lock-in", s.now)
	risk.Severity = models.SeverityMedium

	vendor := s.newRecord(models.KindVendor, "Acme Corp", s.now)
	vendor.Vendor = &models.VendorDetails{NextAssessmentDate: s.now.Add(-time.Hour)}

	deleted := s.newRecord(models.KindRisk, "Gone", s.now)

	for _, r := range []*models.Record{finding, risk, vendor, deleted} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}
	_, err := s.store.Execute(s.ctx, deleted.ID, func(r *models.Record) error {
		r.ApplyDelete(s.now)
		return nil
	})
	s.Require().NoError(err)

	agg, err := s.store.Aggregate(s.ctx, s.now)
	s.Require().NoError(err)

	s.Equal(3, agg.Total)
	s.Equal(1, agg.KindStatusCounts[models.KindFinding][models.StatusOpen])
	s.Equal(1, agg.KindStatusCounts[models.KindRisk][models.StatusIdentified])
	s.Equal(1, agg.SeverityCounts[models.SeverityCritical])
	s.Equal(1, agg.SeverityCounts[models.SeverityMedium])
	s.Equal(1, agg.OverdueByKind[models.KindFinding])
	s.Equal(1, agg.OverdueByKind[models.KindVendor])
}
