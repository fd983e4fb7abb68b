package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"caseflow/internal/workflow/models"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	txcontext "caseflow/pkg/platform/tx"
)

// PostgresStore persists workflow_rules.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ruleColumns = `id, tenant_id, key, name, description, is_active, config, last_run_at, run_count,
	created_by, updated_by, created_at, updated_at`

func (s *PostgresStore) ListActive(ctx context.Context, tenantID domain.TenantID, keys []string) ([]*models.Rule, error) {
	if keys == nil {
		keys = []string{}
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `SELECT `+ruleColumns+`
		FROM workflow_rules
		WHERE tenant_id = $1
			AND is_active
			AND (cardinality($2::text[]) = 0 OR key = ANY($2::text[]))
		ORDER BY id ASC
	`, int64(tenantID), pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Rule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, tenantID domain.TenantID, key string) (*models.Rule, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+ruleColumns+`
		FROM workflow_rules
		WHERE tenant_id = $1 AND key = $2
	`, int64(tenantID), key)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find rule: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rule *models.Rule) error {
	var config any
	if len(rule.Config) > 0 {
		config = []byte(rule.Config)
	}
	var (
		id       int64
		runCount int
		lastRun  sql.NullTime
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO workflow_rules (tenant_id, key, name, description, is_active, config, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, key) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			config = EXCLUDED.config,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
		RETURNING id, run_count, last_run_at
	`, int64(rule.TenantID), rule.Key, rule.Name, rule.Description, rule.IsActive, config,
		nullableUser(rule.CreatedBy), nullableUser(rule.UpdatedBy), rule.CreatedAt, rule.UpdatedAt).Scan(&id, &runCount, &lastRun)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	rule.ID = domain.RuleID(id)
	rule.RunCount = runCount
	if lastRun.Valid {
		t := lastRun.Time
		rule.LastRunAt = &t
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, tenantID domain.TenantID, ruleID domain.RuleID, actorID domain.UserID, at time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE workflow_rules
		SET run_count = run_count + 1, last_run_at = $3, updated_by = $4, updated_at = $3
		WHERE tenant_id = $1 AND id = $2
	`, int64(tenantID), int64(ruleID), at, int64(actorID))
	if err != nil {
		return fmt.Errorf("record rule run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record rule run rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.Rule, error) {
	var (
		r                    models.Rule
		id, tenantID         int64
		description          sql.NullString
		config               []byte
		lastRunAt            sql.NullTime
		createdBy, updatedBy sql.NullInt64
	)
	if err := row.Scan(&id, &tenantID, &r.Key, &r.Name, &description, &r.IsActive, &config, &lastRunAt, &r.RunCount,
		&createdBy, &updatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = domain.RuleID(id)
	r.TenantID = domain.TenantID(tenantID)
	r.Description = description.String
	r.Config = config
	if lastRunAt.Valid {
		t := lastRunAt.Time
		r.LastRunAt = &t
	}
	if createdBy.Valid {
		u := domain.UserID(createdBy.Int64)
		r.CreatedBy = &u
	}
	if updatedBy.Valid {
		u := domain.UserID(updatedBy.Int64)
		r.UpdatedBy = &u
	}
	return &r, nil
}

func nullableUser(id *domain.UserID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}
