package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/classledger/classledger-backend/internal/payroll/domain"
	"github.com/classledger/classledger-backend/internal/payroll/events"
	"github.com/classledger/classledger-backend/internal/payroll/repository"
	"github.com/classledger/classledger-backend/pkg/actor"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/messaging"
	"github.com/classledger/classledger-backend/pkg/tenant"
)

// PaymentDetails is the payment information recorded when a salary is paid.
type PaymentDetails struct {
	PaymentDate  time.Time `json:"payment_date"`
	PaymentMode  string    `json:"payment_mode"`
	PaymentProof *string   `json:"payment_proof,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
}

// SalaryService generates monthly salary records and drives them through the
// approval/payment state machine.
type SalaryService struct {
	db             *database.DB
	salaryRepo     *repository.SalaryRepository
	structureRepo  *repository.StructureRepository
	attendanceRepo *repository.AttendanceRepository
	publisher      *events.PayrollEventPublisher
	logger         *logger.Logger
}

// NewSalaryService creates a new salary service
func NewSalaryService(
	db *database.DB,
	salaryRepo *repository.SalaryRepository,
	structureRepo *repository.StructureRepository,
	attendanceRepo *repository.AttendanceRepository,
	publisher *events.PayrollEventPublisher,
	log *logger.Logger,
) *SalaryService {
	return &SalaryService{
		db:             db,
		salaryRepo:     salaryRepo,
		structureRepo:  structureRepo,
		attendanceRepo: attendanceRepo,
		publisher:      publisher,
		logger:         log,
	}
}

// Generate computes and inserts the teacher's salary record for a month. The
// check-then-insert sequence runs in one transaction serialized per
// (teacher, month, year), so two concurrent calls cannot both pass the
// uniqueness check. A record already existing for the period is a duplicate
// even when it was rejected.
func (s *SalaryService) Generate(ctx context.Context, teacherID string, month, year int) (*repository.SalaryRecord, error) {
	if err := domain.ValidatePeriod(month, year); err != nil {
		return nil, errors.ValidationMsg(err.Error())
	}

	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}
	act := actor.FromContext(ctx)
	if act == nil {
		act = actor.SystemActor()
	}

	var record *repository.SalaryRecord

	err = s.db.WithSchoolTx(ctx, schoolID, database.SalaryLockKey(teacherID, month, year), func(ctx context.Context) error {
		if _, err := s.attendanceRepo.GetTeacher(ctx, teacherID); err != nil {
			return err
		}

		existing, err := s.salaryRepo.GetForPeriod(ctx, teacherID, month, year)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.Uniqueness(fmt.Sprintf("salary record already exists for %d/%d with status %s", month, year, existing.Status))
		}

		firstDay, lastDay := domain.MonthBounds(month, year)

		structure, err := s.structureRepo.GetActiveOn(ctx, teacherID, firstDay)
		if err != nil {
			return err
		}

		absentDays := 0
		if structure.AttendanceBasedDeduction {
			absentDays, err = s.attendanceRepo.CountAbsentDays(ctx, teacherID, firstDay, lastDay)
			if err != nil {
				return err
			}
		}

		comp := domain.Compute(
			structure.BaseSalary, structure.HRA, structure.OtherAllowances,
			structure.FixedDeductions, structure.AttendanceBasedDeduction, absentDays,
		)

		if comp.Net.IsNegative() {
			s.logger.Warn().
				Str("teacher_id", teacherID).
				Int("month", month).
				Int("year", year).
				Str("net_salary", comp.Net.String()).
				Msg("generated salary has negative net")
		}

		record = &repository.SalaryRecord{
			SchoolID:            schoolID,
			TeacherID:           teacherID,
			SalaryStructureID:   structure.ID,
			Month:               month,
			Year:                year,
			GrossSalary:         comp.Gross,
			AttendanceDeduction: comp.AttendanceDeduction,
			TotalDeductions:     comp.TotalDeductions,
			NetSalary:           comp.Net,
			GeneratedBy:         act.ID,
		}
		return s.salaryRepo.Insert(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishSalaryGenerated(ctx, record)

	s.logger.Info().
		Str("record_id", record.ID).
		Str("teacher_id", teacherID).
		Int("month", month).
		Int("year", year).
		Str("net_salary", record.NetSalary.String()).
		Str("generated_by", act.ID).
		Msg("salary generated")

	return record, nil
}

// Approve transitions a pending record to approved and clears any prior
// rejection reason.
func (s *SalaryService) Approve(ctx context.Context, recordID string) (*repository.SalaryRecord, error) {
	record, act, err := s.transition(ctx, recordID, domain.StatusPending, "approve", func(ctx context.Context, act *actor.Actor) error {
		return s.salaryRepo.Approve(ctx, recordID, act.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishSalaryStatus(ctx, messaging.EventSalaryApproved, record, act.ID, "")

	s.logger.Info().
		Str("record_id", recordID).
		Str("approved_by", act.ID).
		Msg("salary approved")

	return record, nil
}

// Reject transitions a pending record to rejected. The reason is mandatory
// and must carry at least 5 characters.
func (s *SalaryService) Reject(ctx context.Context, recordID, reason string) (*repository.SalaryRecord, error) {
	if utf8.RuneCountInString(strings.TrimSpace(reason)) < 5 {
		return nil, errors.ValidationMsg("rejection reason must be at least 5 characters")
	}

	record, act, err := s.transition(ctx, recordID, domain.StatusPending, "reject", func(ctx context.Context, _ *actor.Actor) error {
		return s.salaryRepo.Reject(ctx, recordID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishSalaryStatus(ctx, messaging.EventSalaryRejected, record, act.ID, reason)

	s.logger.Info().
		Str("record_id", recordID).
		Str("rejected_by", act.ID).
		Str("reason", reason).
		Msg("salary rejected")

	return record, nil
}

// MarkPaid transitions an approved record to paid and records the payment
// details.
func (s *SalaryService) MarkPaid(ctx context.Context, recordID string, details PaymentDetails) (*repository.SalaryRecord, error) {
	if !domain.IsValidPaymentMode(details.PaymentMode) {
		return nil, errors.ValidationMsg("payment_mode must be one of bank, cash, upi")
	}
	if details.PaymentDate.IsZero() {
		details.PaymentDate = time.Now().UTC()
	}

	record, act, err := s.transition(ctx, recordID, domain.StatusApproved, "mark paid", func(ctx context.Context, act *actor.Actor) error {
		return s.salaryRepo.MarkPaid(ctx, recordID, act.ID, details.PaymentDate, details.PaymentMode, details.PaymentProof, details.Notes)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishSalaryStatus(ctx, messaging.EventSalaryPaid, record, act.ID, "")

	s.logger.Info().
		Str("record_id", recordID).
		Str("paid_by", act.ID).
		Str("payment_mode", details.PaymentMode).
		Msg("salary marked paid")

	return record, nil
}

// transition runs one guarded status transition in a school transaction. The
// record is read first so an illegal transition can echo its actual status;
// the SQL status guard backs that check against concurrent writers.
func (s *SalaryService) transition(ctx context.Context, recordID, expectedStatus, verb string, apply func(context.Context, *actor.Actor) error) (*repository.SalaryRecord, *actor.Actor, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, nil, err
	}
	act := actor.FromContext(ctx)
	if act == nil {
		act = actor.SystemActor()
	}

	var record *repository.SalaryRecord

	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		record, err = s.salaryRepo.GetByID(ctx, recordID)
		if err != nil {
			return err
		}

		if record.Status != expectedStatus {
			return errors.State(fmt.Sprintf("cannot %s: status is %s, expected %s", verb, record.Status, expectedStatus))
		}

		if err := apply(ctx, act); err != nil {
			return err
		}

		record, err = s.salaryRepo.GetByID(ctx, recordID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return record, act, nil
}

// Get gets a salary record by ID
func (s *SalaryService) Get(ctx context.Context, recordID string) (*repository.SalaryRecord, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var record *repository.SalaryRecord
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		record, err = s.salaryRepo.GetByID(ctx, recordID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List lists salary records with filters
func (s *SalaryService) List(ctx context.Context, params repository.SalaryListParams) ([]*repository.SalaryRecord, int64, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var records []*repository.SalaryRecord
	var total int64
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		records, total, err = s.salaryRepo.List(ctx, params)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
