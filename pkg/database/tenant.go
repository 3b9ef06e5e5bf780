package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithSchoolTx executes a function inside one transaction pinned to a school.
// This is the isolation AND atomicity mechanism for every versioning or
// generate-with-uniqueness operation: the entire close-then-insert (fee
// windows) or check-then-insert (salary generation) sequence runs in a single
// transaction, serialized against concurrent calls by an advisory lock.
//
// Usage in services:
//
//	schoolID, err := tenant.SchoolID(ctx)
//	if err != nil { return err }
//	err = s.db.WithSchoolTx(ctx, schoolID, database.StudentLockKey(studentID), func(ctx context.Context) error {
//	    ... repository calls; all share the transaction via ctx ...
//	})
//
// How it works:
//  1. Starts a transaction
//  2. "SET LOCAL search_path TO <service_schema>" (from config)
//  3. "SET LOCAL app.current_school = '<uuid>'" - RLS policies filter rows:
//     USING (school_id = current_setting('app.current_school')::uuid)
//  4. "SELECT pg_advisory_xact_lock(hashtext(<key>))" when a lock key is
//     given; the lock is released automatically at commit/rollback
//  5. Runs fn with the transaction stored in the context; any error rolls
//     the whole sequence back
//
// SET LOCAL is transaction-scoped, so pooled connections (PgBouncer) get a
// clean state on the next request, and RLS is enforced by the Postgres
// engine rather than query discipline in app code.
func (db *DB) WithSchoolTx(ctx context.Context, schoolID string, lockKey string, fn func(context.Context) error) error {
	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		searchPath := db.searchPath
		if searchPath == "" {
			searchPath = "public"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", searchPath)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", searchPath, err)
		}

		// SET LOCAL doesn't support parameterized queries; schoolID is a
		// UUID validated upstream, not raw user input.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_school = '%s'", schoolID)); err != nil {
			return fmt.Errorf("failed to set app.current_school to %s: %w", schoolID, err)
		}

		if lockKey != "" {
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockKey); err != nil {
				return fmt.Errorf("failed to take advisory lock %s: %w", lockKey, err)
			}
		}

		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

// WithSchool is WithSchoolTx without an advisory lock, for read paths that
// only need tenant pinning.
func (db *DB) WithSchool(ctx context.Context, schoolID string, fn func(context.Context) error) error {
	return db.WithSchoolTx(ctx, schoolID, "", fn)
}

// StudentLockKey serializes fee-window versioning per student.
func StudentLockKey(studentID string) string {
	return "student:" + studentID
}

// StructureLockKey serializes salary-structure versioning per teacher.
func StructureLockKey(teacherID string) string {
	return "structure:" + teacherID
}

// SalaryLockKey serializes salary generation per (teacher, month, year).
func SalaryLockKey(teacherID string, month, year int) string {
	return fmt.Sprintf("salary:%s:%d:%d", teacherID, month, year)
}

// getTx extracts transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
