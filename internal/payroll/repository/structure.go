package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
)

// SalaryStructure is one effective-dated compensation window for a teacher.
// At most one structure is open per teacher at a time.
type SalaryStructure struct {
	ID                       string          `db:"id" json:"id"`
	SchoolID                 string          `db:"school_id" json:"school_id"`
	TeacherID                string          `db:"teacher_id" json:"teacher_id"`
	BaseSalary               decimal.Decimal `db:"base_salary" json:"base_salary"`
	HRA                      decimal.Decimal `db:"hra" json:"hra"`
	OtherAllowances          decimal.Decimal `db:"other_allowances" json:"other_allowances"`
	FixedDeductions          decimal.Decimal `db:"fixed_deductions" json:"fixed_deductions"`
	SalaryCycle              string          `db:"salary_cycle" json:"salary_cycle"`
	AttendanceBasedDeduction bool            `db:"attendance_based_deduction" json:"attendance_based_deduction"`
	EffectiveFrom            time.Time       `db:"effective_from" json:"effective_from"`
	EffectiveTo              *time.Time      `db:"effective_to" json:"effective_to,omitempty"`
	IsActive                 bool            `db:"is_active" json:"is_active"`
	CreatedBy                string          `db:"created_by" json:"created_by"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
}

// StructureRepository persists salary structure windows.
type StructureRepository struct {
	db *database.DB
}

// NewStructureRepository creates a new structure repository
func NewStructureRepository(db *database.DB) *StructureRepository {
	return &StructureRepository{db: db}
}

// GetOpen gets the teacher's open structure, or nil if none exists
func (r *StructureRepository) GetOpen(ctx context.Context, teacherID string) (*SalaryStructure, error) {
	var structure SalaryStructure
	query := `
		SELECT id, school_id, teacher_id, base_salary, hra, other_allowances,
		       fixed_deductions, salary_cycle, attendance_based_deduction,
		       effective_from, effective_to, is_active, created_by, created_at
		FROM salary_structures
		WHERE teacher_id = $1 AND effective_to IS NULL AND is_active = true
	`
	err := r.db.GetContext(ctx, &structure, query, teacherID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &structure, nil
}

// GetActiveOn gets the structure whose window covers the given date
func (r *StructureRepository) GetActiveOn(ctx context.Context, teacherID string, onDate time.Time) (*SalaryStructure, error) {
	var structure SalaryStructure
	query := `
		SELECT id, school_id, teacher_id, base_salary, hra, other_allowances,
		       fixed_deductions, salary_cycle, attendance_based_deduction,
		       effective_from, effective_to, is_active, created_by, created_at
		FROM salary_structures
		WHERE teacher_id = $1
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY effective_from DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &structure, query, teacherID, onDate)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("salary structure")
	}
	if err != nil {
		return nil, err
	}
	return &structure, nil
}

// CloseOpen closes the teacher's open structure at the cutoff date. Must run
// inside the same transaction as the superseding insert.
func (r *StructureRepository) CloseOpen(ctx context.Context, teacherID string, cutoff time.Time) error {
	query := `
		UPDATE salary_structures
		SET effective_to = $2, is_active = false
		WHERE teacher_id = $1 AND effective_to IS NULL AND is_active = true
	`
	result, err := r.db.ExecContext(ctx, query, teacherID, cutoff)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Inconsistent("open salary structure vanished during versioning")
	}

	return nil
}

// Insert inserts a new open-ended structure window
func (r *StructureRepository) Insert(ctx context.Context, structure *SalaryStructure) error {
	if structure.ID == "" {
		structure.ID = uuid.New().String()
	}
	structure.IsActive = true

	query := `
		INSERT INTO salary_structures (
			id, school_id, teacher_id, base_salary, hra, other_allowances,
			fixed_deductions, salary_cycle, attendance_based_deduction,
			effective_from, is_active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	return database.MapError(r.db.QueryRowxContext(ctx, query,
		structure.ID, structure.SchoolID, structure.TeacherID, structure.BaseSalary,
		structure.HRA, structure.OtherAllowances, structure.FixedDeductions,
		structure.SalaryCycle, structure.AttendanceBasedDeduction,
		structure.EffectiveFrom, structure.IsActive, structure.CreatedBy,
	).Scan(&structure.CreatedAt))
}

// ListHistory lists every structure window for a teacher, newest first
func (r *StructureRepository) ListHistory(ctx context.Context, teacherID string) ([]*SalaryStructure, error) {
	var structures []*SalaryStructure
	query := `
		SELECT id, school_id, teacher_id, base_salary, hra, other_allowances,
		       fixed_deductions, salary_cycle, attendance_based_deduction,
		       effective_from, effective_to, is_active, created_by, created_at
		FROM salary_structures
		WHERE teacher_id = $1
		ORDER BY effective_from DESC
	`
	if err := r.db.SelectContext(ctx, &structures, query, teacherID); err != nil {
		return nil, err
	}
	return structures, nil
}
