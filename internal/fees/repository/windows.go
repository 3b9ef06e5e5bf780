package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classledger/classledger-backend/pkg/database"
)

// StudentFeeOverride is one effective-dated exception to the catalog price.
// The existence of an open row is the on/off switch: no row means the student
// pays full catalog price for the category. A NULL fee_category_id marks an
// override on the general class/tuition fee.
type StudentFeeOverride struct {
	ID             string           `db:"id" json:"id"`
	SchoolID       string           `db:"school_id" json:"school_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	FeeCategoryID  *string          `db:"fee_category_id" json:"fee_category_id,omitempty"`
	DiscountAmount *decimal.Decimal `db:"discount_amount" json:"discount_amount,omitempty"`
	IsFullFree     bool             `db:"is_full_free" json:"is_full_free"`
	EffectiveFrom  time.Time        `db:"effective_from" json:"effective_from"`
	EffectiveTo    *time.Time       `db:"effective_to" json:"effective_to,omitempty"`
	IsActive       bool             `db:"is_active" json:"is_active"`
	AppliedBy      string           `db:"applied_by" json:"applied_by"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// StudentFeeProfile is the student's transport status window. Exactly one open
// row exists per student once any configuration has been applied.
type StudentFeeProfile struct {
	ID               string     `db:"id" json:"id"`
	SchoolID         string     `db:"school_id" json:"school_id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	TransportEnabled bool       `db:"transport_enabled" json:"transport_enabled"`
	TransportRoute   *string    `db:"transport_route" json:"transport_route,omitempty"`
	EffectiveFrom    time.Time  `db:"effective_from" json:"effective_from"`
	EffectiveTo      *time.Time `db:"effective_to" json:"effective_to,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	AppliedBy        string     `db:"applied_by" json:"applied_by"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// StudentTransportEnrollment binds a student to a route while the open
// profile has transport enabled.
type StudentTransportEnrollment struct {
	ID            string     `db:"id" json:"id"`
	SchoolID      string     `db:"school_id" json:"school_id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	RouteID       string     `db:"route_id" json:"route_id"`
	EffectiveFrom time.Time  `db:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time `db:"effective_to" json:"effective_to,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// WindowRepository persists the student's effective-dated fee windows.
// Rows are closed, never deleted; history is append-only.
type WindowRepository struct {
	db *database.DB
}

// NewWindowRepository creates a new window repository
func NewWindowRepository(db *database.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

// GetOpenOverrides gets the student's open fee overrides
func (r *WindowRepository) GetOpenOverrides(ctx context.Context, studentID string) ([]*StudentFeeOverride, error) {
	var overrides []*StudentFeeOverride
	query := `
		SELECT id, school_id, student_id, fee_category_id, discount_amount, is_full_free,
		       effective_from, effective_to, is_active, applied_by, notes, created_at
		FROM student_fee_overrides
		WHERE student_id = $1 AND effective_to IS NULL AND is_active = true
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &overrides, query, studentID); err != nil {
		return nil, err
	}
	return overrides, nil
}

// GetOpenProfile gets the student's open fee profile, or nil if the student
// has never had a configuration applied
func (r *WindowRepository) GetOpenProfile(ctx context.Context, studentID string) (*StudentFeeProfile, error) {
	var profile StudentFeeProfile
	query := `
		SELECT id, school_id, student_id, transport_enabled, transport_route,
		       effective_from, effective_to, is_active, applied_by, created_at
		FROM student_fee_profiles
		WHERE student_id = $1 AND effective_to IS NULL AND is_active = true
	`
	err := r.db.GetContext(ctx, &profile, query, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetOpenEnrollment gets the student's open transport enrollment, or nil
func (r *WindowRepository) GetOpenEnrollment(ctx context.Context, studentID string) (*StudentTransportEnrollment, error) {
	var enrollment StudentTransportEnrollment
	query := `
		SELECT id, school_id, student_id, route_id,
		       effective_from, effective_to, is_active, created_at
		FROM student_transport_enrollments
		WHERE student_id = $1 AND effective_to IS NULL AND is_active = true
	`
	err := r.db.GetContext(ctx, &enrollment, query, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CloseOpenWindows closes every open override, profile and transport
// enrollment for the student at the cutoff date. Must run inside the same
// transaction as the inserts that supersede them.
func (r *WindowRepository) CloseOpenWindows(ctx context.Context, studentID string, cutoff time.Time) error {
	closeOverrides := `
		UPDATE student_fee_overrides
		SET effective_to = $2, is_active = false
		WHERE student_id = $1 AND effective_to IS NULL AND is_active = true
	`
	if _, err := r.db.ExecContext(ctx, closeOverrides, studentID, cutoff); err != nil {
		return err
	}

	closeProfiles := `
		UPDATE student_fee_profiles
		SET effective_to = $2, is_active = false
		WHERE student_id = $1 AND effective_to IS NULL AND is_active = true
	`
	if _, err := r.db.ExecContext(ctx, closeProfiles, studentID, cutoff); err != nil {
		return err
	}

	closeEnrollments := `
		UPDATE student_transport_enrollments
		SET effective_to = $2, is_active = false
		WHERE student_id = $1 AND effective_to IS NULL AND is_active = true
	`
	if _, err := r.db.ExecContext(ctx, closeEnrollments, studentID, cutoff); err != nil {
		return err
	}

	return nil
}

// InsertOverride inserts a new open-ended fee override
func (r *WindowRepository) InsertOverride(ctx context.Context, override *StudentFeeOverride) error {
	if override.ID == "" {
		override.ID = uuid.New().String()
	}
	override.IsActive = true

	query := `
		INSERT INTO student_fee_overrides (
			id, school_id, student_id, fee_category_id, discount_amount, is_full_free,
			effective_from, is_active, applied_by, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	return database.MapError(r.db.QueryRowxContext(ctx, query,
		override.ID, override.SchoolID, override.StudentID, override.FeeCategoryID,
		override.DiscountAmount, override.IsFullFree, override.EffectiveFrom,
		override.IsActive, override.AppliedBy, override.Notes,
	).Scan(&override.CreatedAt))
}

// InsertProfile inserts a new open-ended fee profile
func (r *WindowRepository) InsertProfile(ctx context.Context, profile *StudentFeeProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.IsActive = true

	query := `
		INSERT INTO student_fee_profiles (
			id, school_id, student_id, transport_enabled, transport_route,
			effective_from, is_active, applied_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	return database.MapError(r.db.QueryRowxContext(ctx, query,
		profile.ID, profile.SchoolID, profile.StudentID, profile.TransportEnabled,
		profile.TransportRoute, profile.EffectiveFrom, profile.IsActive, profile.AppliedBy,
	).Scan(&profile.CreatedAt))
}

// InsertEnrollment inserts a new open-ended transport enrollment
func (r *WindowRepository) InsertEnrollment(ctx context.Context, enrollment *StudentTransportEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.New().String()
	}
	enrollment.IsActive = true

	query := `
		INSERT INTO student_transport_enrollments (
			id, school_id, student_id, route_id, effective_from, is_active
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return database.MapError(r.db.QueryRowxContext(ctx, query,
		enrollment.ID, enrollment.SchoolID, enrollment.StudentID, enrollment.RouteID,
		enrollment.EffectiveFrom, enrollment.IsActive,
	).Scan(&enrollment.CreatedAt))
}

// ListOverrideHistory lists every override window for a student, newest first
func (r *WindowRepository) ListOverrideHistory(ctx context.Context, studentID string) ([]*StudentFeeOverride, error) {
	var overrides []*StudentFeeOverride
	query := `
		SELECT id, school_id, student_id, fee_category_id, discount_amount, is_full_free,
		       effective_from, effective_to, is_active, applied_by, notes, created_at
		FROM student_fee_overrides
		WHERE student_id = $1
		ORDER BY effective_from DESC, created_at DESC
	`
	if err := r.db.SelectContext(ctx, &overrides, query, studentID); err != nil {
		return nil, err
	}
	return overrides, nil
}

// ListProfileHistory lists every profile window for a student, newest first
func (r *WindowRepository) ListProfileHistory(ctx context.Context, studentID string) ([]*StudentFeeProfile, error) {
	var profiles []*StudentFeeProfile
	query := `
		SELECT id, school_id, student_id, transport_enabled, transport_route,
		       effective_from, effective_to, is_active, applied_by, created_at
		FROM student_fee_profiles
		WHERE student_id = $1
		ORDER BY effective_from DESC, created_at DESC
	`
	if err := r.db.SelectContext(ctx, &profiles, query, studentID); err != nil {
		return nil, err
	}
	return profiles, nil
}
