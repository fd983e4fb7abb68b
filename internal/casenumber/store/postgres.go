package store

import (
	"context"
	"database/sql"
	"fmt"

	"caseflow/pkg/domain"
	txcontext "caseflow/pkg/platform/tx"
)

// PostgresStore increments case_number_counters with a single upsert. The row
// lock taken by the upsert serializes concurrent creators within a tenant and
// year until their transaction ends.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) NextSequence(ctx context.Context, tenantID domain.TenantID, year int) (int64, error) {
	var seq int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO case_number_counters (tenant_id, year, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, year) DO UPDATE SET
			last_seq = case_number_counters.last_seq + 1
		RETURNING last_seq
	`, int64(tenantID), year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next case sequence: %w", err)
	}
	return seq, nil
}
