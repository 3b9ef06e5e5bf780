package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
)

// StudentRef is the roster projection the engine needs: identity, class and
// admission date. The roster itself is owned by another service.
type StudentRef struct {
	ID            string     `db:"id" json:"id"`
	SchoolID      string     `db:"school_id" json:"school_id"`
	ClassGroupID  string     `db:"class_group_id" json:"class_group_id"`
	AdmissionDate *time.Time `db:"admission_date" json:"admission_date,omitempty"`
}

// TransportRoute is the roster projection for a transport route.
type TransportRoute struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// LookupRepository validates roster ids against the caller's school.
type LookupRepository struct {
	db *database.DB
}

// NewLookupRepository creates a new lookup repository
func NewLookupRepository(db *database.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

// GetStudent gets a student by ID
func (r *LookupRepository) GetStudent(ctx context.Context, id string) (*StudentRef, error) {
	var student StudentRef
	query := `
		SELECT id, school_id, class_group_id, admission_date
		FROM students
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &student, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("student")
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// GetRoute gets an active transport route by ID
func (r *LookupRepository) GetRoute(ctx context.Context, id string) (*TransportRoute, error) {
	var route TransportRoute
	query := `
		SELECT id, school_id, name, is_active
		FROM transport_routes
		WHERE id = $1 AND is_active = true
	`
	err := r.db.GetContext(ctx, &route, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("transport route")
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}
