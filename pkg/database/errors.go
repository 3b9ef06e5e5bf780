package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/classledger/classledger-backend/pkg/errors"
)

// MapError runs err through MapPQError and returns the mapped AppError when
// one applies, or the original error unchanged. Row.Scan errors from INSERT
// ... RETURNING statements bypass ExecContext, so repositories route them
// through here.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if mapped := MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}

// MapPQError converts a PostgreSQL error to an AppError in this subsystem's
// taxonomy. Returns nil if the error is not a pq.Error, in which case the
// caller should propagate the original error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Unique constraint violation (23505): duplicate generation key or a
	// second open window slipping past the advisory lock.
	case "23505":
		return errors.Uniqueness(formatConstraintMessage(pqErr))

	// Foreign key violation (23503): referenced id absent in this tenant.
	case "23503":
		return errors.Referential("referenced record")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	default:
		return nil
	}
}

// mapCheckConstraint maps CHECK constraint names to precise messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "effective_range"):
		return errors.ValidationMsg("effective_to must not precede effective_from")

	case strings.Contains(constraint, "status_valid"):
		return errors.ValidationMsg("status must be one of: pending, approved, rejected, paid")

	case strings.Contains(constraint, "payment_mode_valid"):
		return errors.ValidationMsg("payment_mode must be one of: bank, cash, upi")

	case strings.Contains(constraint, "month_valid"):
		return errors.ValidationMsg("month must be between 1 and 12")

	case strings.Contains(constraint, "amount_nonnegative"):
		return errors.ValidationMsg("amount must not be negative")

	default:
		return errors.ValidationMsg("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a precise message for unique violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "salary_records_period"):
		return "a salary record already exists for this teacher and period"
	case strings.Contains(constraint, "open_override"):
		return "an open override already exists for this student and fee category"
	case strings.Contains(constraint, "open_profile"):
		return "an open fee profile already exists for this student"
	case strings.Contains(constraint, "open_structure"):
		return "an open salary structure already exists for this teacher"
	default:
		return "a record with these values already exists"
	}
}
