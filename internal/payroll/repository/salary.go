package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classledger/classledger-backend/internal/payroll/domain"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
)

// SalaryRecord is one teacher's payroll record for a month. Unique per
// (teacher, month, year); mutated only through the status transitions.
type SalaryRecord struct {
	ID                  string          `db:"id" json:"id"`
	SchoolID            string          `db:"school_id" json:"school_id"`
	TeacherID           string          `db:"teacher_id" json:"teacher_id"`
	SalaryStructureID   string          `db:"salary_structure_id" json:"salary_structure_id"`
	Month               int             `db:"month" json:"month"`
	Year                int             `db:"year" json:"year"`
	GrossSalary         decimal.Decimal `db:"gross_salary" json:"gross_salary"`
	AttendanceDeduction decimal.Decimal `db:"attendance_deduction" json:"attendance_deduction"`
	TotalDeductions     decimal.Decimal `db:"total_deductions" json:"total_deductions"`
	NetSalary           decimal.Decimal `db:"net_salary" json:"net_salary"`
	Status              string          `db:"status" json:"status"`
	GeneratedBy         string          `db:"generated_by" json:"generated_by"`
	ApprovedBy          *string         `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt          *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason     *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	PaidBy              *string         `db:"paid_by" json:"paid_by,omitempty"`
	PaidAt              *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	PaymentDate         *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	PaymentMode         *string         `db:"payment_mode" json:"payment_mode,omitempty"`
	PaymentProof        *string         `db:"payment_proof" json:"payment_proof,omitempty"`
	Notes               *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// SalaryListParams holds filters for listing salary records
type SalaryListParams struct {
	TeacherID *string
	Month     *int
	Year      *int
	Status    *string
	Page      int
	PerPage   int
}

const salaryColumns = `id, school_id, teacher_id, salary_structure_id, month, year,
	       gross_salary, attendance_deduction, total_deductions, net_salary,
	       status, generated_by, approved_by, approved_at, rejection_reason,
	       paid_by, paid_at, payment_date, payment_mode, payment_proof, notes,
	       created_at, updated_at`

// SalaryRepository persists salary records.
type SalaryRepository struct {
	db *database.DB
}

// NewSalaryRepository creates a new salary repository
func NewSalaryRepository(db *database.DB) *SalaryRepository {
	return &SalaryRepository{db: db}
}

// GetForPeriod gets the record for a (teacher, month, year) key, or nil
func (r *SalaryRepository) GetForPeriod(ctx context.Context, teacherID string, month, year int) (*SalaryRecord, error) {
	var record SalaryRecord
	query := `
		SELECT ` + salaryColumns + `
		FROM salary_records
		WHERE teacher_id = $1 AND month = $2 AND year = $3
	`
	err := r.db.GetContext(ctx, &record, query, teacherID, month, year)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByID gets a salary record by ID
func (r *SalaryRepository) GetByID(ctx context.Context, id string) (*SalaryRecord, error) {
	var record SalaryRecord
	query := `
		SELECT ` + salaryColumns + `
		FROM salary_records
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &record, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("salary record")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Insert inserts a new pending salary record
func (r *SalaryRepository) Insert(ctx context.Context, record *SalaryRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.Status = domain.StatusPending

	query := `
		INSERT INTO salary_records (
			id, school_id, teacher_id, salary_structure_id, month, year,
			gross_salary, attendance_deduction, total_deductions, net_salary,
			status, generated_by, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	return database.MapError(r.db.QueryRowxContext(ctx, query,
		record.ID, record.SchoolID, record.TeacherID, record.SalaryStructureID,
		record.Month, record.Year, record.GrossSalary, record.AttendanceDeduction,
		record.TotalDeductions, record.NetSalary, record.Status, record.GeneratedBy,
		record.Notes,
	).Scan(&record.CreatedAt, &record.UpdatedAt))
}

// List lists salary records with filters
func (r *SalaryRepository) List(ctx context.Context, params SalaryListParams) ([]*SalaryRecord, int64, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if params.TeacherID != nil {
		whereClause += fmt.Sprintf(" AND teacher_id = $%d", argNum)
		args = append(args, *params.TeacherID)
		argNum++
	}
	if params.Month != nil {
		whereClause += fmt.Sprintf(" AND month = $%d", argNum)
		args = append(args, *params.Month)
		argNum++
	}
	if params.Year != nil {
		whereClause += fmt.Sprintf(" AND year = $%d", argNum)
		args = append(args, *params.Year)
		argNum++
	}
	if params.Status != nil {
		whereClause += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, *params.Status)
		argNum++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM salary_records " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	if params.PerPage <= 0 {
		params.PerPage = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	offset := (params.Page - 1) * params.PerPage

	query := `
		SELECT ` + salaryColumns + `
		FROM salary_records
	` + whereClause + fmt.Sprintf(`
		ORDER BY year DESC, month DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, argNum, argNum+1)

	args = append(args, params.PerPage, offset)

	var records []*SalaryRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// Approve transitions a pending record to approved. The status guard is in
// the statement itself so a concurrent transition cannot slip through.
func (r *SalaryRepository) Approve(ctx context.Context, id, approvedBy string) error {
	query := `
		UPDATE salary_records
		SET status = 'approved', approved_by = $2, approved_at = NOW(),
		    rejection_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, id, approvedBy)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.State("salary record is not pending")
	}

	return nil
}

// Reject transitions a pending record to rejected
func (r *SalaryRepository) Reject(ctx context.Context, id, reason string) error {
	query := `
		UPDATE salary_records
		SET status = 'rejected', rejection_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, id, reason)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.State("salary record is not pending")
	}

	return nil
}

// MarkPaid transitions an approved record to paid
func (r *SalaryRepository) MarkPaid(ctx context.Context, id, paidBy string, paymentDate time.Time, paymentMode string, paymentProof, notes *string) error {
	query := `
		UPDATE salary_records
		SET status = 'paid', paid_by = $2, paid_at = NOW(),
		    payment_date = $3, payment_mode = $4, payment_proof = $5,
		    notes = COALESCE($6, notes), updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
	`
	result, err := r.db.ExecContext(ctx, query, id, paidBy, paymentDate, paymentMode, paymentProof, notes)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.State("salary record is not approved")
	}

	return nil
}
