package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"complyd/internal/records/models"
	"complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// InMemory keeps records in process memory. Dev mode and unit tests run on
// it; the shared store suite pins its behavior to the postgres store's.
type InMemory struct {
	mu      sync.RWMutex
	records map[domain.RecordID]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[domain.RecordID]*models.Record)}
}

func (s *InMemory) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok || record.Status == models.StatusDeleted {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]*models.Record, int, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	var matched []*models.Record
	for _, record := range s.records {
		if filter.Matches(record) {
			matched = append(matched, record.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []*models.Record{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Execute runs fn against a clone of the stored record under the write lock
// and commits the clone only if fn succeeds. fn failures (including audit
// append failures) leave the stored record untouched.
func (s *InMemory) Execute(_ context.Context, id domain.RecordID, fn func(*models.Record) error) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.records[id] = working
	return working.Clone(), nil
}

func (s *InMemory) Aggregate(_ context.Context, now time.Time) (Aggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := Aggregates{
		KindStatusCounts: make(map[models.Kind]map[models.Status]int),
		SeverityCounts:   make(map[models.Severity]int),
		OverdueByKind:    make(map[models.Kind]int),
	}
	for _, record := range s.records {
		if record.Status == models.StatusDeleted {
			continue
		}
		agg.Total++
		byStatus, ok := agg.KindStatusCounts[record.Kind]
		if !ok {
			byStatus = make(map[models.Status]int)
			agg.KindStatusCounts[record.Kind] = byStatus
		}
		byStatus[record.Status]++
		if record.Severity != "" {
			agg.SeverityCounts[record.Severity]++
		}
		if record.IsOverdue(now) {
			agg.OverdueByKind[record.Kind]++
		}
	}
	return agg, nil
}
