package events

import (
	"context"
	"time"

	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/messaging"
)

// FeeEventPublisher publishes fee-related events. Publishing is best-effort:
// a failure is logged and never fails the versioning operation.
type FeeEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewFeeEventPublisher creates a new fee event publisher
func NewFeeEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*FeeEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeFeeEvents, "fees-service", log)
	if err != nil {
		return nil, err
	}

	return &FeeEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishWindowApplied publishes a fee window applied event
func (p *FeeEventPublisher) PublishWindowApplied(ctx context.Context, studentID, schoolID string, effectiveFrom time.Time, overrideCount int, appliedBy string) {
	if p == nil {
		return
	}

	data := messaging.FeeWindowAppliedEvent{
		StudentID:     studentID,
		SchoolID:      schoolID,
		EffectiveFrom: effectiveFrom.Format("2006-01-02"),
		OverrideCount: overrideCount,
		AppliedBy:     appliedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventFeeWindowApplied, data); err != nil {
		p.logger.Error().Err(err).Str("student_id", studentID).Msg("failed to publish fee window applied event")
	}
}
