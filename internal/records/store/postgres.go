package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"complyd/internal/records/models"
	"complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
	txcontext "complyd/pkg/platform/tx"
)

// Postgres persists records in the records table. Kind-specific detail
// structs live in a jsonb column; the filterable facets are first-class
// columns. Mutations ride the caller's transaction when one is in context so
// the audit outbox insert commits atomically with the record write.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type recordDetails struct {
	Risk     *models.RiskDetails     `json:"risk,omitempty"`
	Finding  *models.FindingDetails  `json:"finding,omitempty"`
	Policy   *models.PolicyDetails   `json:"policy,omitempty"`
	Vendor   *models.VendorDetails   `json:"vendor,omitempty"`
	Analysis *models.AnalysisDetails `json:"analysis,omitempty"`
}

const recordColumns = `
	id, kind, title, description, category, tags, status, severity,
	owner, version, created_at, updated_at, target_date, closed_date, details
`

func (s *Postgres) Create(ctx context.Context, record *models.Record) error {
	details, err := marshalDetails(record)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID), string(record.Kind), record.Title, record.Description,
		record.Category, pq.Array(record.Tags), string(record.Status), string(record.Severity),
		record.Owner, record.Version, record.CreatedAt, record.UpdatedAt,
		record.TargetDate, record.ClosedDate, details,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.RecordID) (*models.Record, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM records
		WHERE id = $1 AND status <> 'deleted'
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id))
	record, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	return record, err
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]*models.Record, int, error) {
	filter = filter.Normalize()

	where := "status <> 'deleted'"
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Kind != "" {
		where += " AND kind = " + arg(string(filter.Kind))
	}
	if filter.Status != "" {
		where += " AND status = " + arg(string(filter.Status))
	}
	if filter.Severity != "" {
		where += " AND severity = " + arg(string(filter.Severity))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		p := arg(pattern)
		where += fmt.Sprintf(" AND (title ILIKE %s OR description ILIKE %s OR array_to_string(tags, ' ') ILIKE %s)", p, p, p)
	}

	query := `
		SELECT ` + recordColumns + `, COUNT(*) OVER() AS total
		FROM records
		WHERE ` + where + `
		ORDER BY created_at DESC, id ASC
		LIMIT ` + arg(filter.PageSize) + ` OFFSET ` + arg((filter.Page-1)*filter.PageSize)

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []*models.Record{}
	total := 0
	for rows.Next() {
		record, err := scanRecord(func(dest ...any) error {
			return rows.Scan(append(dest, &total)...)
		})
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if total == 0 && filter.Page > 1 {
		// Page past the end: the window total vanished with the empty page.
		row := s.execer(ctx).QueryRowContext(ctx,
			"SELECT COUNT(*) FROM records WHERE "+where, args[:len(args)-2]...)
		if err := row.Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count records: %w", err)
		}
	}
	return records, total, nil
}

// Execute implements optimistic concurrency: the conditional UPDATE re-checks
// the version read at the start, and a lost race returns ErrStaleVersion
// instead of overwriting.
func (s *Postgres) Execute(ctx context.Context, id domain.RecordID, fn func(*models.Record) error) (*models.Record, error) {
	exec := s.execer(ctx)

	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE id = $1
	`
	if _, inTx := txcontext.From(ctx); inTx {
		query += " FOR UPDATE"
	}
	row := exec.QueryRowContext(ctx, query, uuid.UUID(id))
	record, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	baseVersion := record.Version
	if err := fn(record); err != nil {
		return nil, err
	}

	details, err := marshalDetails(record)
	if err != nil {
		return nil, err
	}
	const update = `
		UPDATE records SET
			title = $1, description = $2, category = $3, tags = $4,
			status = $5, severity = $6, owner = $7, version = $8,
			updated_at = $9, target_date = $10, closed_date = $11, details = $12
		WHERE id = $13 AND version = $14
	`
	result, err := exec.ExecContext(ctx, update,
		record.Title, record.Description, record.Category, pq.Array(record.Tags),
		string(record.Status), string(record.Severity), record.Owner, record.Version,
		record.UpdatedAt, record.TargetDate, record.ClosedDate, details,
		uuid.UUID(id), baseVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrStaleVersion
	}
	return record, nil
}

func (s *Postgres) Aggregate(ctx context.Context, now time.Time) (Aggregates, error) {
	agg := Aggregates{
		KindStatusCounts: make(map[models.Kind]map[models.Status]int),
		SeverityCounts:   make(map[models.Severity]int),
		OverdueByKind:    make(map[models.Kind]int),
	}

	const countsQuery = `
		SELECT kind, status, severity, COUNT(*)
		FROM records
		WHERE status <> 'deleted'
		GROUP BY kind, status, severity
	`
	rows, err := s.execer(ctx).QueryContext(ctx, countsQuery)
	if err != nil {
		return agg, fmt.Errorf("aggregate records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, status, severity string
		var count int
		if err := rows.Scan(&kind, &status, &severity, &count); err != nil {
			return agg, err
		}
		byStatus, ok := agg.KindStatusCounts[models.Kind(kind)]
		if !ok {
			byStatus = make(map[models.Status]int)
			agg.KindStatusCounts[models.Kind(kind)] = byStatus
		}
		byStatus[models.Status(status)] += count
		if severity != "" {
			agg.SeverityCounts[models.Severity(severity)] += count
		}
		agg.Total += count
	}
	if err := rows.Err(); err != nil {
		return agg, err
	}

	const overdueQuery = `
		SELECT kind, COUNT(*)
		FROM records
		WHERE status <> 'deleted' AND (
			(kind = 'vendor' AND (details #>> '{vendor,next_assessment_date}')::timestamptz <= $1)
			OR (kind <> 'vendor' AND target_date IS NOT NULL AND target_date < $1 AND NOT (
				(kind = 'finding' AND status = 'closed')
				OR (kind = 'policy' AND status IN ('superseded', 'retired'))
				OR (kind = 'ai_analysis' AND status IN ('approved', 'rejected'))
				OR (kind = 'risk' AND status IN ('accepted', 'closed'))
			))
		)
		GROUP BY kind
	`
	overdueRows, err := s.execer(ctx).QueryContext(ctx, overdueQuery, now)
	if err != nil {
		return agg, fmt.Errorf("aggregate overdue: %w", err)
	}
	defer overdueRows.Close()
	for overdueRows.Next() {
		var kind string
		var count int
		if err := overdueRows.Scan(&kind, &count); err != nil {
			return agg, err
		}
		agg.OverdueByKind[models.Kind(kind)] = count
	}
	return agg, overdueRows.Err()
}

func marshalDetails(record *models.Record) ([]byte, error) {
	details, err := json.Marshal(recordDetails{
		Risk:     record.Risk,
		Finding:  record.Finding,
		Policy:   record.Policy,
		Vendor:   record.Vendor,
		Analysis: record.Analysis,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal record details: %w", err)
	}
	return details, nil
}

func scanRecord(scan func(dest ...any) error) (*models.Record, error) {
	var (
		record      models.Record
		id          uuid.UUID
		kind        string
		status      string
		severity    string
		tags        pq.StringArray
		targetDate  sql.NullTime
		closedDate  sql.NullTime
		detailsJSON []byte
	)
	err := scan(&id, &kind, &record.Title, &record.Description, &record.Category,
		&tags, &status, &severity, &record.Owner, &record.Version,
		&record.CreatedAt, &record.UpdatedAt, &targetDate, &closedDate, &detailsJSON)
	if err != nil {
		return nil, err
	}
	record.ID = domain.RecordID(id)
	record.Kind = models.Kind(kind)
	record.Status = models.Status(status)
	record.Severity = models.Severity(severity)
	record.Tags = tags
	if targetDate.Valid {
		record.TargetDate = &targetDate.Time
	}
	if closedDate.Valid {
		record.ClosedDate = &closedDate.Time
	}
	var details recordDetails
	if err := json.Unmarshal(detailsJSON, &details); err != nil {
		return nil, fmt.Errorf("unmarshal record details: %w", err)
	}
	record.Risk = details.Risk
	record.Finding = details.Finding
	record.Policy = details.Policy
	record.Vendor = details.Vendor
	record.Analysis = details.Analysis
	return &record, nil
}
