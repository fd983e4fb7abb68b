package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"caseflow/internal/cases/models"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	txcontext "caseflow/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists cases in PostgreSQL. Every query is tenant-scoped and
// ignores soft-deleted rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const caseColumns = `
	id, tenant_id, case_number, owner_id, vehicle_id, service_type, status, priority,
	submitted_at, reviewed_at, reviewed_by, completed_at, estimated_completion_date,
	vehicle_data, requirements_data, reviewer_notes, rejection_reason,
	created_at, updated_at, deleted_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Case) error {
	vehicleData, err := marshalJSON(c.VehicleData)
	if err != nil {
		return err
	}
	requirementsData, err := marshalJSON(c.RequirementsData)
	if err != nil {
		return err
	}
	var id int64
	err = txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO cases (tenant_id, case_number, owner_id, vehicle_id, service_type, status, priority,
			vehicle_data, requirements_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, int64(c.TenantID), c.CaseNumber, int64(c.OwnerID), nullableID(c.VehicleID), string(c.ServiceType),
		string(c.Status), string(c.Priority), vehicleData, requirementsData, c.CreatedAt, c.UpdatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert case: %w", err)
	}
	c.ID = domain.CaseID(id)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.CaseID) (*models.Case, error) {
	return s.findOne(ctx, tenantID, id, "")
}

// FindByIDForUpdate locks the case row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, tenantID domain.TenantID, id domain.CaseID) (*models.Case, error) {
	return s.findOne(ctx, tenantID, id, " FOR UPDATE")
}

func (s *PostgresStore) findOne(ctx context.Context, tenantID domain.TenantID, id domain.CaseID, lock string) (*models.Case, error) {
	exec := txcontext.Exec(ctx, s.db)
	row := exec.QueryRowContext(ctx, `SELECT `+caseColumns+`
		FROM cases
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`+lock,
		int64(tenantID), int64(id))
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	if err := s.loadRelations(ctx, exec, []*models.Case{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Case) error {
	vehicleData, err := marshalJSON(c.VehicleData)
	if err != nil {
		return err
	}
	requirementsData, err := marshalJSON(c.RequirementsData)
	if err != nil {
		return err
	}
	var reviewedBy any
	if c.ReviewedBy != nil {
		reviewedBy = int64(*c.ReviewedBy)
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE cases SET
			vehicle_id = $3, status = $4, priority = $5,
			submitted_at = $6, reviewed_at = $7, reviewed_by = $8, completed_at = $9,
			estimated_completion_date = $10, vehicle_data = $11, requirements_data = $12,
			reviewer_notes = $13, rejection_reason = $14, updated_at = $15, deleted_at = $16
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, int64(c.TenantID), int64(c.ID), nullableID(c.VehicleID), string(c.Status), string(c.Priority),
		c.SubmittedAt, c.ReviewedAt, reviewedBy, c.CompletedAt,
		c.EstimatedCompletionDate, vehicleData, requirementsData,
		c.ReviewerNotes, c.RejectionReason, c.UpdatedAt, c.DeletedAt)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListCandidates returns the oldest submissions first; unsubmitted rows sort last.
func (s *PostgresStore) ListCandidates(ctx context.Context, tenantID domain.TenantID, q models.CandidateQuery) ([]*models.Case, error) {
	exec := txcontext.Exec(ctx, s.db)
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := exec.QueryContext(ctx, `SELECT `+caseColumns+`
		FROM cases
		WHERE tenant_id = $1
			AND status = $2
			AND ($3 = '' OR service_type = $3)
			AND deleted_at IS NULL
		ORDER BY submitted_at ASC NULLS LAST, id ASC
		LIMIT $4
	`, int64(tenantID), string(q.Status), string(q.ServiceType), limit)
	if err != nil {
		return nil, fmt.Errorf("list candidate cases: %w", err)
	}
	defer rows.Close()

	var out []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate cases: %w", err)
	}
	if err := s.loadRelations(ctx, exec, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) SaveVehicle(ctx context.Context, v *models.Vehicle) error {
	exec := txcontext.Exec(ctx, s.db)
	if v.ID == 0 {
		var id int64
		err := exec.QueryRowContext(ctx, `
			INSERT INTO vehicles (tenant_id, year, registration_status)
			VALUES ($1, $2, $3)
			RETURNING id
		`, int64(v.TenantID), v.Year, string(v.RegistrationStatus)).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert vehicle: %w", err)
		}
		v.ID = domain.VehicleID(id)
		return nil
	}
	_, err := exec.ExecContext(ctx, `
		UPDATE vehicles SET year = $3, registration_status = $4
		WHERE tenant_id = $1 AND id = $2
	`, int64(v.TenantID), int64(v.ID), v.Year, string(v.RegistrationStatus))
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddDocument(ctx context.Context, d *models.Document) error {
	var id int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO documents (case_id, document_type, status, uploaded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, int64(d.CaseID), string(d.Type), string(d.Status), d.UploadedAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	d.ID = domain.DocumentID(id)
	return nil
}

func (s *PostgresStore) AddPayment(ctx context.Context, p *models.Payment) error {
	var id int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO payments (case_id, status, amount_cents)
		VALUES ($1, $2, $3)
		RETURNING id
	`, int64(p.CaseID), string(p.Status), p.AmountCents).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID = domain.PaymentID(id)
	return nil
}

// loadRelations hydrates vehicles, documents, and payments in three queries
// regardless of batch size.
func (s *PostgresStore) loadRelations(ctx context.Context, exec txcontext.Executor, cases []*models.Case) error {
	if len(cases) == 0 {
		return nil
	}
	byID := make(map[domain.CaseID]*models.Case, len(cases))
	caseIDs := make([]int64, 0, len(cases))
	var vehicleIDs []int64
	for _, c := range cases {
		byID[c.ID] = c
		caseIDs = append(caseIDs, int64(c.ID))
		if c.VehicleID != nil {
			vehicleIDs = append(vehicleIDs, int64(*c.VehicleID))
		}
	}

	docRows, err := exec.QueryContext(ctx, `
		SELECT id, case_id, document_type, status, uploaded_at
		FROM documents
		WHERE case_id = ANY($1)
		ORDER BY id
	`, pq.Array(caseIDs))
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	for docRows.Next() {
		var (
			id, caseID    int64
			docType, stat string
			uploadedAt    time.Time
		)
		if err := docRows.Scan(&id, &caseID, &docType, &stat, &uploadedAt); err != nil {
			docRows.Close()
			return fmt.Errorf("scan document: %w", err)
		}
		c := byID[domain.CaseID(caseID)]
		c.Documents = append(c.Documents, models.Document{
			ID: domain.DocumentID(id), CaseID: c.ID,
			Type: models.DocumentType(docType), Status: models.DocumentStatus(stat), UploadedAt: uploadedAt,
		})
	}
	docRows.Close()
	if err := docRows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}

	payRows, err := exec.QueryContext(ctx, `
		SELECT id, case_id, status, amount_cents
		FROM payments
		WHERE case_id = ANY($1)
		ORDER BY id
	`, pq.Array(caseIDs))
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	for payRows.Next() {
		var (
			id, caseID, amount int64
			stat               string
		)
		if err := payRows.Scan(&id, &caseID, &stat, &amount); err != nil {
			payRows.Close()
			return fmt.Errorf("scan payment: %w", err)
		}
		c := byID[domain.CaseID(caseID)]
		c.Payments = append(c.Payments, models.Payment{
			ID: domain.PaymentID(id), CaseID: c.ID, Status: models.PaymentStatus(stat), AmountCents: amount,
		})
	}
	payRows.Close()
	if err := payRows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}

	if len(vehicleIDs) == 0 {
		return nil
	}
	tenantID := int64(cases[0].TenantID)
	vehRows, err := exec.QueryContext(ctx, `
		SELECT id, tenant_id, year, registration_status
		FROM vehicles
		WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, pq.Array(vehicleIDs))
	if err != nil {
		return fmt.Errorf("load vehicles: %w", err)
	}
	defer vehRows.Close()
	vehicles := make(map[domain.VehicleID]models.Vehicle)
	for vehRows.Next() {
		var (
			id, tid int64
			year    int
			stat    string
		)
		if err := vehRows.Scan(&id, &tid, &year, &stat); err != nil {
			return fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles[domain.VehicleID(id)] = models.Vehicle{
			ID: domain.VehicleID(id), TenantID: domain.TenantID(tid), Year: year,
			RegistrationStatus: models.RegistrationStatus(stat),
		}
	}
	if err := vehRows.Err(); err != nil {
		return fmt.Errorf("iterate vehicles: %w", err)
	}
	for _, c := range cases {
		if c.VehicleID == nil {
			continue
		}
		if v, ok := vehicles[*c.VehicleID]; ok {
			c.Vehicle = &v
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c                                    models.Case
		id, tenantID, ownerID                int64
		vehicleID, reviewedBy                sql.NullInt64
		serviceType, status, priority        string
		submittedAt, reviewedAt, completedAt sql.NullTime
		estimated, deletedAt                 sql.NullTime
		vehicleData, requirementsData        []byte
		reviewerNotes, rejectionReason       sql.NullString
	)
	if err := row.Scan(&id, &tenantID, &c.CaseNumber, &ownerID, &vehicleID, &serviceType, &status, &priority,
		&submittedAt, &reviewedAt, &reviewedBy, &completedAt, &estimated,
		&vehicleData, &requirementsData, &reviewerNotes, &rejectionReason,
		&c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	c.ID = domain.CaseID(id)
	c.TenantID = domain.TenantID(tenantID)
	c.OwnerID = domain.UserID(ownerID)
	c.ServiceType = models.ServiceType(serviceType)
	c.Status = models.Status(status)
	c.Priority = models.Priority(priority)
	c.ReviewerNotes = reviewerNotes.String
	c.RejectionReason = rejectionReason.String
	if vehicleID.Valid {
		v := domain.VehicleID(vehicleID.Int64)
		c.VehicleID = &v
	}
	if reviewedBy.Valid {
		u := domain.UserID(reviewedBy.Int64)
		c.ReviewedBy = &u
	}
	c.SubmittedAt = nullTime(submittedAt)
	c.ReviewedAt = nullTime(reviewedAt)
	c.CompletedAt = nullTime(completedAt)
	c.EstimatedCompletionDate = nullTime(estimated)
	c.DeletedAt = nullTime(deletedAt)
	if len(vehicleData) > 0 {
		if err := json.Unmarshal(vehicleData, &c.VehicleData); err != nil {
			return nil, fmt.Errorf("decode vehicle_data: %w", err)
		}
	}
	if len(requirementsData) > 0 {
		if err := json.Unmarshal(requirementsData, &c.RequirementsData); err != nil {
			return nil, fmt.Errorf("decode requirements_data: %w", err)
		}
	}
	return &c, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullableID(id *domain.VehicleID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func marshalJSON(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return b, nil
}
