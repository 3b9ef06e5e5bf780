package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
)

// TeacherRef is the roster projection for a teacher.
type TeacherRef struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// AttendanceRepository reads teacher attendance. The attendance data is owned
// by another service; this repository only counts.
type AttendanceRepository struct {
	db *database.DB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *database.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// GetTeacher gets a teacher by ID
func (r *AttendanceRepository) GetTeacher(ctx context.Context, id string) (*TeacherRef, error) {
	var teacher TeacherRef
	query := `
		SELECT id, school_id, is_active
		FROM teachers
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &teacher, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("teacher")
	}
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}

// CountAbsentDays counts the teacher's absent days within a date range,
// bounds inclusive
func (r *AttendanceRepository) CountAbsentDays(ctx context.Context, teacherID string, from, to time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM teacher_attendance_days
		WHERE teacher_id = $1 AND status = 'absent' AND date BETWEEN $2 AND $3
	`
	if err := r.db.GetContext(ctx, &count, query, teacherID, from, to); err != nil {
		return 0, err
	}
	return count, nil
}
