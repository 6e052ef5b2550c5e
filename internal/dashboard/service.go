// Package dashboard aggregates record counts into the compliance overview:
// per-kind status breakdowns, severity distribution, overdue counts, and the
// cross-layer risk summary. Aggregation is read-only and cacheable.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"complyd/internal/records/models"
	"complyd/internal/records/store"
	"complyd/internal/scoring"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/requestcontext"
)

// Aggregator is the slice of the record store the dashboard reads.
type Aggregator interface {
	Aggregate(ctx context.Context, now time.Time) (store.Aggregates, error)
}

// Summary is the dashboard read model.
type Summary struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Total       int                       `json:"total"`
	ByKind      map[string]map[string]int `json:"by_kind"`
	BySeverity  map[string]int            `json:"by_severity"`
	Overdue     map[string]int            `json:"overdue"`
	CrossLayer  CrossLayerSummary         `json:"cross_layer"`
}

// CrossLayerSummary reports the aggregate severity-weighted risk.
type CrossLayerSummary struct {
	Layers []LayerSummary `json:"layers"`
	Total  float64        `json:"total"`
	Level  string         `json:"level"`
}

// LayerSummary is one severity band's contribution.
type LayerSummary struct {
	Severity     string  `json:"severity"`
	Count        int     `json:"count"`
	Criticality  float64 `json:"criticality"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// severityLayers fixes each severity band's criticality and weight for the
// cross-layer computation. Ordered from most to least severe for stable
// output.
var severityLayers = []struct {
	severity    models.Severity
	criticality float64
	weight      float64
}{
	{models.SeverityCritical, 5, 1.5},
	{models.SeverityHigh, 4, 1.0},
	{models.SeverityMedium, 3, 0.6},
	{models.SeverityLow, 2, 0.3},
}

const cacheKey = "dashboard:summary"

// Service computes and caches the dashboard summary.
type Service struct {
	aggregator Aggregator
	cache      Cache
	ttl        time.Duration
	logger     *slog.Logger
}

func New(aggregator Aggregator, cache Cache, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{aggregator: aggregator, cache: cache, ttl: ttl, logger: logger}
}

// Summary returns the cached summary when fresh, recomputing otherwise.
// Cache errors degrade to a recompute.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	if cached, err := s.cache.Get(ctx, cacheKey); err != nil {
		s.logger.WarnContext(ctx, "dashboard cache read failed", "error", err)
	} else if cached != nil {
		var summary Summary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return &summary, nil
		}
		s.logger.WarnContext(ctx, "dashboard cache entry corrupt, recomputing")
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(summary); err == nil {
		if err := s.cache.Set(ctx, cacheKey, encoded, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "dashboard cache write failed", "error", err)
		}
	}
	return summary, nil
}

func (s *Service) compute(ctx context.Context) (*Summary, error) {
	now := requestcontext.Now(ctx)
	agg, err := s.aggregator.Aggregate(ctx, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dashboard aggregation failed")
	}

	summary := &Summary{
		GeneratedAt: now,
		Total:       agg.Total,
		ByKind:      make(map[string]map[string]int, len(agg.KindStatusCounts)),
		BySeverity:  make(map[string]int, len(agg.SeverityCounts)),
		Overdue:     make(map[string]int, len(agg.OverdueByKind)),
	}
	for kind, byStatus := range agg.KindStatusCounts {
		statuses := make(map[string]int, len(byStatus))
		for status, count := range byStatus {
			statuses[string(status)] = count
		}
		summary.ByKind[string(kind)] = statuses
	}
	for severity, count := range agg.SeverityCounts {
		summary.BySeverity[string(severity)] = count
	}
	for kind, count := range agg.OverdueByKind {
		summary.Overdue[string(kind)] = count
	}

	var layers []scoring.Layer
	for _, band := range severityLayers {
		count := agg.SeverityCounts[band.severity]
		layer := scoring.Layer{Count: count, AvgCriticality: band.criticality, RiskWeight: band.weight}
		layers = append(layers, layer)
		summary.CrossLayer.Layers = append(summary.CrossLayer.Layers, LayerSummary{
			Severity:     string(band.severity),
			Count:        count,
			Criticality:  band.criticality,
			Weight:       band.weight,
			Contribution: scoring.CrossLayerRisk([]scoring.Layer{layer}),
		})
	}
	summary.CrossLayer.Total = scoring.CrossLayerRisk(layers)
	summary.CrossLayer.Level = string(scoring.CrossLayerLevelFor(summary.CrossLayer.Total))
	return summary, nil
}
