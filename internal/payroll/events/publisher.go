package events

import (
	"context"

	"github.com/classledger/classledger-backend/internal/payroll/repository"
	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/messaging"
)

// PayrollEventPublisher publishes payroll events. Publishing is best-effort:
// a failure is logged and never fails the primary operation.
type PayrollEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPayrollEventPublisher creates a new payroll event publisher
func NewPayrollEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PayrollEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePayrollEvents, "payroll-service", log)
	if err != nil {
		return nil, err
	}

	return &PayrollEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStructureChanged publishes a salary structure changed event
func (p *PayrollEventPublisher) PublishStructureChanged(ctx context.Context, structure *repository.SalaryStructure) {
	if p == nil {
		return
	}

	data := messaging.StructureChangedEvent{
		TeacherID:     structure.TeacherID,
		SchoolID:      structure.SchoolID,
		StructureID:   structure.ID,
		EffectiveFrom: structure.EffectiveFrom.Format("2006-01-02"),
	}

	if err := p.publisher.Publish(ctx, messaging.EventStructureChanged, data); err != nil {
		p.logger.Error().Err(err).Str("teacher_id", structure.TeacherID).Msg("failed to publish structure changed event")
	}
}

// PublishSalaryGenerated publishes a salary generated event
func (p *PayrollEventPublisher) PublishSalaryGenerated(ctx context.Context, record *repository.SalaryRecord) {
	if p == nil {
		return
	}

	data := messaging.SalaryGeneratedEvent{
		RecordID:  record.ID,
		TeacherID: record.TeacherID,
		SchoolID:  record.SchoolID,
		Month:     record.Month,
		Year:      record.Year,
		NetSalary: record.NetSalary.String(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventSalaryGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", record.ID).Msg("failed to publish salary generated event")
	}
}

// PublishSalaryStatus publishes a salary status transition event
func (p *PayrollEventPublisher) PublishSalaryStatus(ctx context.Context, eventType string, record *repository.SalaryRecord, actorID, reason string) {
	if p == nil {
		return
	}

	data := messaging.SalaryStatusEvent{
		RecordID:  record.ID,
		TeacherID: record.TeacherID,
		SchoolID:  record.SchoolID,
		Status:    record.Status,
		Actor:     actorID,
		Reason:    reason,
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", record.ID).Msg("failed to publish salary status event")
	}
}
