package service

import (
	"context"
	"time"

	"github.com/classledger/classledger-backend/internal/fees/domain"
	"github.com/classledger/classledger-backend/internal/fees/events"
	"github.com/classledger/classledger-backend/internal/fees/repository"
	"github.com/classledger/classledger-backend/pkg/actor"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/logger"
	"github.com/classledger/classledger-backend/pkg/tenant"
)

// WindowSnapshot is the row set of the student's new open window. It is the
// input a downstream billing reader consumes; this service never computes an
// invoice total itself.
type WindowSnapshot struct {
	StudentID     string                                 `json:"student_id"`
	EffectiveFrom time.Time                              `json:"effective_from"`
	Profile       *repository.StudentFeeProfile          `json:"profile"`
	Overrides     []*repository.StudentFeeOverride       `json:"overrides"`
	Enrollment    *repository.StudentTransportEnrollment `json:"enrollment,omitempty"`
}

// WindowHistory is the full append-only window history for a student.
type WindowHistory struct {
	StudentID string                           `json:"student_id"`
	Profiles  []*repository.StudentFeeProfile  `json:"profiles"`
	Overrides []*repository.StudentFeeOverride `json:"overrides"`
}

// FeeConfigService is the fee-configuration versioning engine. A configuration
// change atomically closes the student's open windows at effectiveFrom - 1 day
// (same-day re-applies close on the window's own start day) and opens new
// ones reflecting the request.
type FeeConfigService struct {
	db          *database.DB
	catalogRepo *repository.CatalogRepository
	lookupRepo  *repository.LookupRepository
	windowRepo  *repository.WindowRepository
	publisher   *events.FeeEventPublisher
	logger      *logger.Logger
	now         func() time.Time
}

// NewFeeConfigService creates a new fee configuration service
func NewFeeConfigService(
	db *database.DB,
	catalogRepo *repository.CatalogRepository,
	lookupRepo *repository.LookupRepository,
	windowRepo *repository.WindowRepository,
	publisher *events.FeeEventPublisher,
	log *logger.Logger,
) *FeeConfigService {
	return &FeeConfigService{
		db:          db,
		catalogRepo: catalogRepo,
		lookupRepo:  lookupRepo,
		windowRepo:  windowRepo,
		publisher:   publisher,
		logger:      log,
		now:         time.Now,
	}
}

// ApplyConfiguration closes the student's open fee windows and opens new ones
// for the requested configuration. The whole close-then-insert sequence runs
// in one transaction serialized per student, so two concurrent calls cannot
// both observe (and both close) the same open window.
//
// Entitlements that stay at full price get no override row. The new profile
// row is always inserted, even with transport disabled, so the current
// transport status is unambiguous.
func (s *FeeConfigService) ApplyConfiguration(ctx context.Context, studentID string, cfg domain.FeeConfiguration, explicitFrom *time.Time) (*WindowSnapshot, error) {
	if err := cfg.Validate(); err != nil {
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

	var snapshot *WindowSnapshot

	err = s.db.WithSchoolTx(ctx, schoolID, database.StudentLockKey(studentID), func(ctx context.Context) error {
		student, err := s.lookupRepo.GetStudent(ctx, studentID)
		if err != nil {
			return err
		}

		effectiveFrom, err := domain.ResolveEffectiveFrom(explicitFrom, student.AdmissionDate, s.now())
		if err != nil {
			return err
		}

		open, err := s.windowRepo.GetOpenProfile(ctx, studentID)
		if err != nil {
			return err
		}

		// A window superseded on its own first day must not close before it
		// starts, so the cutoff is clamped to the open window's start.
		cutoff := domain.Cutoff(effectiveFrom)
		if open != nil {
			cutoff = domain.SupersedeCutoff(effectiveFrom, open.EffectiveFrom)
		}

		// Resolve and validate every referenced id before any write.
		refs, err := s.resolveReferences(ctx, student, cfg, effectiveFrom)
		if err != nil {
			return err
		}

		if err := s.windowRepo.CloseOpenWindows(ctx, studentID, cutoff); err != nil {
			s.logger.Error().Err(err).Str("student_id", studentID).Msg("failed to close open fee windows")
			return errors.Inconsistent("failed to close open fee windows")
		}

		overrides, err := s.insertOverrides(ctx, schoolID, studentID, act.ID, cfg, refs, effectiveFrom)
		if err != nil {
			return err
		}

		profile := &repository.StudentFeeProfile{
			SchoolID:         schoolID,
			StudentID:        studentID,
			TransportEnabled: cfg.Transport.Enabled,
			TransportRoute:   refs.routeName,
			EffectiveFrom:    effectiveFrom,
			AppliedBy:        act.ID,
		}
		if err := s.windowRepo.InsertProfile(ctx, profile); err != nil {
			return err
		}

		var enrollment *repository.StudentTransportEnrollment
		if cfg.Transport.Enabled {
			enrollment = &repository.StudentTransportEnrollment{
				SchoolID:      schoolID,
				StudentID:     studentID,
				RouteID:       *cfg.Transport.RouteID,
				EffectiveFrom: effectiveFrom,
			}
			if err := s.windowRepo.InsertEnrollment(ctx, enrollment); err != nil {
				return err
			}
		}

		snapshot = &WindowSnapshot{
			StudentID:     studentID,
			EffectiveFrom: effectiveFrom,
			Profile:       profile,
			Overrides:     overrides,
			Enrollment:    enrollment,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishWindowApplied(ctx, studentID, schoolID, snapshot.EffectiveFrom, len(snapshot.Overrides), act.ID)

	s.logger.Info().
		Str("student_id", studentID).
		Str("school_id", schoolID).
		Time("effective_from", snapshot.EffectiveFrom).
		Int("override_count", len(snapshot.Overrides)).
		Str("applied_by", act.ID).
		Msg("fee configuration applied")

	return snapshot, nil
}

// resolvedRefs holds catalog and roster rows resolved for one configuration.
type resolvedRefs struct {
	classFee     *repository.ClassFeeDefault
	routeName    *string
	transportCat *repository.FeeCategory
	customFees   map[string]*repository.OptionalFeeDefinition
}

func (s *FeeConfigService) resolveReferences(ctx context.Context, student *repository.StudentRef, cfg domain.FeeConfiguration, effectiveFrom time.Time) (*resolvedRefs, error) {
	refs := &resolvedRefs{customFees: make(map[string]*repository.OptionalFeeDefinition)}

	if cfg.Transport.Enabled {
		route, err := s.lookupRepo.GetRoute(ctx, *cfg.Transport.RouteID)
		if err != nil {
			return nil, err
		}
		refs.routeName = &route.Name

		if cfg.Transport.Discount.IsPositive() {
			cat, err := s.catalogRepo.GetCategoryByType(ctx, domain.FeeTypeTransport)
			if err != nil {
				return nil, err
			}
			refs.transportCat = cat
		}
	}

	switch {
	case cfg.ClassFeeID != nil:
		classFee, err := s.catalogRepo.GetClassFeeDefault(ctx, *cfg.ClassFeeID)
		if err != nil {
			return nil, err
		}
		refs.classFee = classFee
	case cfg.ClassFeeDiscount.IsPositive():
		classFee, err := s.catalogRepo.ResolveClassFeeDefault(ctx, student.ClassGroupID, effectiveFrom)
		if err != nil {
			return nil, err
		}
		refs.classFee = classFee
	}

	for _, f := range cfg.OtherFees {
		if _, err := s.catalogRepo.GetCategory(ctx, f.FeeCategoryID); err != nil {
			return nil, err
		}
	}

	for _, f := range cfg.CustomFees {
		def, err := s.catalogRepo.GetOptionalFee(ctx, f.FeeID)
		if err != nil {
			return nil, err
		}
		refs.customFees[f.FeeID] = def
	}

	return refs, nil
}

// insertOverrides inserts one open-ended override row per entitlement that
// departs from full price. A zero discount with no exemption means full
// price, so nothing is inserted.
func (s *FeeConfigService) insertOverrides(ctx context.Context, schoolID, studentID, appliedBy string, cfg domain.FeeConfiguration, refs *resolvedRefs, effectiveFrom time.Time) ([]*repository.StudentFeeOverride, error) {
	overrides := make([]*repository.StudentFeeOverride, 0, 2+len(cfg.OtherFees)+len(cfg.CustomFees))

	add := func(o *repository.StudentFeeOverride) error {
		o.SchoolID = schoolID
		o.StudentID = studentID
		o.EffectiveFrom = effectiveFrom
		o.AppliedBy = appliedBy
		o.Notes = cfg.Notes
		if err := s.windowRepo.InsertOverride(ctx, o); err != nil {
			return err
		}
		overrides = append(overrides, o)
		return nil
	}

	if refs.classFee != nil && cfg.ClassFeeDiscount.IsPositive() {
		discount := cfg.ClassFeeDiscount
		if err := add(&repository.StudentFeeOverride{
			FeeCategoryID:  refs.classFee.FeeCategoryID,
			DiscountAmount: &discount,
		}); err != nil {
			return nil, err
		}
	}

	if refs.transportCat != nil {
		discount := cfg.Transport.Discount
		catID := refs.transportCat.ID
		if err := add(&repository.StudentFeeOverride{
			FeeCategoryID:  &catID,
			DiscountAmount: &discount,
		}); err != nil {
			return nil, err
		}
	}

	for _, f := range cfg.OtherFees {
		if !f.Enabled || !f.Discount.IsPositive() {
			continue
		}
		discount := f.Discount
		catID := f.FeeCategoryID
		if err := add(&repository.StudentFeeOverride{
			FeeCategoryID:  &catID,
			DiscountAmount: &discount,
		}); err != nil {
			return nil, err
		}
	}

	for _, f := range cfg.CustomFees {
		if !f.Exempt && !f.Discount.IsPositive() {
			continue
		}
		def := refs.customFees[f.FeeID]
		catID := def.FeeCategoryID
		o := &repository.StudentFeeOverride{
			FeeCategoryID: &catID,
			IsFullFree:    f.Exempt,
		}
		if f.Discount.IsPositive() {
			discount := f.Discount
			o.DiscountAmount = &discount
		}
		if err := add(o); err != nil {
			return nil, err
		}
	}

	return overrides, nil
}

// GetOpenWindow returns the student's current open window row set.
func (s *FeeConfigService) GetOpenWindow(ctx context.Context, studentID string) (*WindowSnapshot, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var snapshot *WindowSnapshot
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		if _, err := s.lookupRepo.GetStudent(ctx, studentID); err != nil {
			return err
		}

		profile, err := s.windowRepo.GetOpenProfile(ctx, studentID)
		if err != nil {
			return err
		}
		overrides, err := s.windowRepo.GetOpenOverrides(ctx, studentID)
		if err != nil {
			return err
		}
		enrollment, err := s.windowRepo.GetOpenEnrollment(ctx, studentID)
		if err != nil {
			return err
		}

		snapshot = &WindowSnapshot{
			StudentID:  studentID,
			Profile:    profile,
			Overrides:  overrides,
			Enrollment: enrollment,
		}
		if profile != nil {
			snapshot.EffectiveFrom = profile.EffectiveFrom
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GetWindowHistory returns every window the student has ever had, newest
// first. Closed windows are never deleted.
func (s *FeeConfigService) GetWindowHistory(ctx context.Context, studentID string) (*WindowHistory, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var history *WindowHistory
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		if _, err := s.lookupRepo.GetStudent(ctx, studentID); err != nil {
			return err
		}

		profiles, err := s.windowRepo.ListProfileHistory(ctx, studentID)
		if err != nil {
			return err
		}
		overrides, err := s.windowRepo.ListOverrideHistory(ctx, studentID)
		if err != nil {
			return err
		}

		history = &WindowHistory{
			StudentID: studentID,
			Profiles:  profiles,
			Overrides: overrides,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}
