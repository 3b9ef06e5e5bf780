package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classledger/classledger-backend/internal/payroll/domain"
	"github.com/classledger/classledger-backend/internal/payroll/events"
	"github.com/classledger/classledger-backend/internal/payroll/repository"
	"github.com/classledger/classledger-backend/pkg/actor"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/tenant"
)

// StructureInput is the compensation a new structure window carries.
type StructureInput struct {
	BaseSalary               decimal.Decimal `json:"base_salary"`
	HRA                      decimal.Decimal `json:"hra"`
	OtherAllowances          decimal.Decimal `json:"other_allowances"`
	FixedDeductions          decimal.Decimal `json:"fixed_deductions"`
	SalaryCycle              string          `json:"salary_cycle" validate:"required,oneof=monthly weekly"`
	AttendanceBasedDeduction bool            `json:"attendance_based_deduction"`
}

// Validate checks the structure amounts
func (in *StructureInput) Validate() error {
	details := map[string]string{}
	if in.BaseSalary.IsNegative() {
		details["base_salary"] = "must not be negative"
	}
	if in.HRA.IsNegative() {
		details["hra"] = "must not be negative"
	}
	if in.OtherAllowances.IsNegative() {
		details["other_allowances"] = "must not be negative"
	}
	if in.FixedDeductions.IsNegative() {
		details["fixed_deductions"] = "must not be negative"
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// StructureService versions teacher salary structures with the same
// close-then-open pattern as fee windows, narrowed to one open structure per
// teacher.
type StructureService struct {
	db             *database.DB
	structureRepo  *repository.StructureRepository
	attendanceRepo *repository.AttendanceRepository
	publisher      *events.PayrollEventPublisher
	logger         *logger.Logger
	now            func() time.Time
}

// NewStructureService creates a new structure service
func NewStructureService(
	db *database.DB,
	structureRepo *repository.StructureRepository,
	attendanceRepo *repository.AttendanceRepository,
	publisher *events.PayrollEventPublisher,
	log *logger.Logger,
) *StructureService {
	return &StructureService{
		db:             db,
		structureRepo:  structureRepo,
		attendanceRepo: attendanceRepo,
		publisher:      publisher,
		logger:         log,
		now:            time.Now,
	}
}

// SetStructure closes the teacher's open structure at effectiveFrom - 1 day
// and inserts the new one open-ended. A new structure must start strictly
// after the currently open one.
func (s *StructureService) SetStructure(ctx context.Context, teacherID string, input StructureInput, effectiveFrom time.Time) (*repository.SalaryStructure, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}
	act := actor.FromContext(ctx)
	if act == nil {
		act = actor.SystemActor()
	}

	effectiveFrom = domain.DateOnly(effectiveFrom)

	var structure *repository.SalaryStructure

	err = s.db.WithSchoolTx(ctx, schoolID, database.StructureLockKey(teacherID), func(ctx context.Context) error {
		if _, err := s.attendanceRepo.GetTeacher(ctx, teacherID); err != nil {
			return err
		}

		open, err := s.structureRepo.GetOpen(ctx, teacherID)
		if err != nil {
			return err
		}

		if open != nil {
			if !effectiveFrom.After(open.EffectiveFrom) {
				return errors.ValidationMsg("effective_from must be after the open structure's effective_from")
			}
			if err := s.structureRepo.CloseOpen(ctx, teacherID, domain.Cutoff(effectiveFrom)); err != nil {
				return err
			}
		} else if effectiveFrom.Before(s.now().AddDate(-1, 0, 0)) {
			// accepted, but worth an audit trail entry
			s.logger.Warn().
				Str("teacher_id", teacherID).
				Time("effective_from", effectiveFrom).
				Msg("salary structure backdated more than a year")
		}

		structure = &repository.SalaryStructure{
			SchoolID:                 schoolID,
			TeacherID:                teacherID,
			BaseSalary:               input.BaseSalary,
			HRA:                      input.HRA,
			OtherAllowances:          input.OtherAllowances,
			FixedDeductions:          input.FixedDeductions,
			SalaryCycle:              input.SalaryCycle,
			AttendanceBasedDeduction: input.AttendanceBasedDeduction,
			EffectiveFrom:            effectiveFrom,
			CreatedBy:                act.ID,
		}
		return s.structureRepo.Insert(ctx, structure)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStructureChanged(ctx, structure)

	s.logger.Info().
		Str("teacher_id", teacherID).
		Str("structure_id", structure.ID).
		Time("effective_from", effectiveFrom).
		Str("created_by", act.ID).
		Msg("salary structure set")

	return structure, nil
}

// GetActiveStructure gets the structure covering the given date
func (s *StructureService) GetActiveStructure(ctx context.Context, teacherID string, onDate time.Time) (*repository.SalaryStructure, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var structure *repository.SalaryStructure
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		structure, err = s.structureRepo.GetActiveOn(ctx, teacherID, domain.DateOnly(onDate))
		return err
	})
	if err != nil {
		return nil, err
	}
	return structure, nil
}

// GetStructureHistory lists every structure window for a teacher
func (s *StructureService) GetStructureHistory(ctx context.Context, teacherID string) ([]*repository.SalaryStructure, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var structures []*repository.SalaryStructure
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		if _, err := s.attendanceRepo.GetTeacher(ctx, teacherID); err != nil {
			return err
		}
		structures, err = s.structureRepo.ListHistory(ctx, teacherID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return structures, nil
}
