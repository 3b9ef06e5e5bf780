package tenant

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const schoolIDKey contextKey = "school_id"

var (
	// ErrNoSchoolInContext is returned when school context is missing
	ErrNoSchoolInContext = errors.New("no school in context")
)

// WithSchoolID returns a context carrying the school (tenant) ID.
// This is set by middleware after the gateway has verified identity;
// everything below the handler layer trusts it unconditionally.
func WithSchoolID(ctx context.Context, schoolID string) context.Context {
	return context.WithValue(ctx, schoolIDKey, schoolID)
}

// SchoolID extracts the school ID from context.
// Returns ErrNoSchoolInContext if it is not present.
func SchoolID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(schoolIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoSchoolInContext
	}
	return id, nil
}

// MustSchoolID extracts the school ID from context and panics if not found.
// Use only where missing tenant context is a programming error.
func MustSchoolID(ctx context.Context) string {
	id, err := SchoolID(ctx)
	if err != nil {
		panic("school ID not found in context")
	}
	return id
}
