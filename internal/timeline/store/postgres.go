package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/timeline/models"
	"caseflow/pkg/domain"
	txcontext "caseflow/pkg/platform/tx"
)

// OutboxEventType is the outbox event_type used for every timeline entry.
const OutboxEventType = "case.timeline.appended"

// PostgresStore writes timeline rows and, in the same transaction, an outbox
// row that the relay worker publishes to Kafka.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON published for each entry.
type outboxPayload struct {
	EntryID     int64          `json:"entry_id"`
	TenantID    int64          `json:"tenant_id"`
	CaseID      int64          `json:"case_id"`
	EventType   string         `json:"event_type"`
	Description string         `json:"description"`
	PerformedBy *int64         `json:"performed_by,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.Entry) error {
	exec := txcontext.Exec(ctx, s.db)

	var metadata []byte
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal timeline metadata: %w", err)
		}
		metadata = b
	}
	var performedBy *int64
	if entry.PerformedBy != nil {
		v := int64(*entry.PerformedBy)
		performedBy = &v
	}

	var id int64
	err := exec.QueryRowContext(ctx, `
		INSERT INTO case_timeline (tenant_id, case_id, event_type, description, performed_by, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, int64(entry.TenantID), int64(entry.CaseID), string(entry.EventType), entry.Description, performedBy, metadata, entry.CreatedAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert timeline entry: %w", err)
	}
	entry.ID = domain.EntryID(id)

	payload, err := json.Marshal(outboxPayload{
		EntryID:     id,
		TenantID:    int64(entry.TenantID),
		CaseID:      int64(entry.CaseID),
		EventType:   string(entry.EventType),
		Description: entry.Description,
		PerformedBy: performedBy,
		Metadata:    entry.Metadata,
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, 'case', $2, $3, $4, $5)
	`, uuid.New(), entry.CaseID.String(), OutboxEventType, payload, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCase(ctx context.Context, tenantID domain.TenantID, caseID domain.CaseID) ([]*models.Entry, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, tenant_id, case_id, event_type, description, performed_by, metadata, created_at
		FROM case_timeline
		WHERE tenant_id = $1 AND case_id = $2
		ORDER BY created_at DESC, id DESC
	`, int64(tenantID), int64(caseID))
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		var (
			e           models.Entry
			id, tid     int64
			cid         int64
			eventType   string
			performedBy sql.NullInt64
			metadata    []byte
		)
		if err := rows.Scan(&id, &tid, &cid, &eventType, &e.Description, &performedBy, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		e.ID, e.TenantID, e.CaseID, e.EventType = domain.EntryID(id), domain.TenantID(tid), domain.CaseID(cid), models.EventType(eventType)
		if performedBy.Valid {
			by := domain.UserID(performedBy.Int64)
			e.PerformedBy = &by
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode timeline metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) CountByCase(ctx context.Context, tenantID domain.TenantID, caseID domain.CaseID) (int, error) {
	var n int
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM case_timeline WHERE tenant_id = $1 AND case_id = $2`,
		int64(tenantID), int64(caseID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count timeline: %w", err)
	}
	return n, nil
}
