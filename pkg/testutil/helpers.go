package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classledger/classledger-backend/pkg/actor"
	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/tenant"
)

// TestSchoolID is a fixed school identifier for unit tests
const TestSchoolID = "c0a80121-0000-4000-8000-000000000001"

// TestActorID is a fixed actor identifier for unit tests
const TestActorID = "c0a80121-0000-4000-8000-000000000002"

// NewTestLogger creates a logger suitable for tests
func NewTestLogger() *logger.Logger {
	return logger.New("test", "development")
}

// TestContext returns a context carrying the test school and an admin actor
func TestContext() context.Context {
	ctx := tenant.WithSchoolID(context.Background(), TestSchoolID)
	return actor.WithActor(ctx, &actor.Actor{
		ID:       TestActorID,
		Role:     "admin",
		SchoolID: TestSchoolID,
	})
}

// Date builds a UTC midnight time for effective-date tests
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Money parses a decimal amount, failing the test on bad input
func Money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}
