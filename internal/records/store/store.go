package store

import (
	"context"
	"strings"
	"time"

	"complyd/internal/records/models"
	"complyd/pkg/domain"
)

// Store persists compliance records. Interface-driven so the service stays
// testable and the in-memory and postgres implementations stay swappable.
//
// Execute is the serialization point for mutations: implementations run fn
// against the current record snapshot and commit the result only if fn
// returns nil and the version fn started from is still current. The memory
// store holds a mutex across fn; the postgres store re-checks the version on
// the conditional UPDATE. Either way a lost race surfaces as
// sentinel.ErrStaleVersion, never as a silent last-writer-wins.
type Store interface {
	Create(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, id domain.RecordID) (*models.Record, error)
	List(ctx context.Context, filter Filter) ([]*models.Record, int, error)
	Execute(ctx context.Context, id domain.RecordID, fn func(*models.Record) error) (*models.Record, error)
	Aggregate(ctx context.Context, now time.Time) (Aggregates, error)
}

// Filter names the conjunctive list facets. Zero values mean "no constraint".
type Filter struct {
	Kind     models.Kind
	Status   models.Status
	Severity models.Severity
	// Search is a case-insensitive substring match over title, description,
	// and tags.
	Search   string
	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize applies pagination defaults: page is 1-indexed, page size is
// bounded.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

// Matches implements the facet semantics for the in-memory store. Deleted
// records never match.
func (f Filter) Matches(r *models.Record) bool {
	if r.Status == models.StatusDeleted {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Title), needle) &&
			!strings.Contains(strings.ToLower(r.Description), needle) &&
			!tagsContain(r.Tags, needle) {
			return false
		}
	}
	return true
}

func tagsContain(tags []string, needle string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Aggregates are the dashboard counts, grouped server-side so the dashboard
// never pages through full record sets.
type Aggregates struct {
	KindStatusCounts map[models.Kind]map[models.Status]int
	SeverityCounts   map[models.Severity]int
	OverdueByKind    map[models.Kind]int
	Total            int
}
