package service

import (
	"context"

	"github.com/classledger/classledger-backend/internal/fees/repository"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/tenant"
)

// CatalogService exposes fee reference data reads.
type CatalogService struct {
	db          *database.DB
	catalogRepo *repository.CatalogRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *database.DB, catalogRepo *repository.CatalogRepository) *CatalogService {
	return &CatalogService{db: db, catalogRepo: catalogRepo}
}

// ListCategories lists the school's active fee categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]*repository.FeeCategory, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var categories []*repository.FeeCategory
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		categories, err = s.catalogRepo.ListCategories(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// ListClassFees lists the active class-fee defaults for a class
func (s *CatalogService) ListClassFees(ctx context.Context, classGroupID string) ([]*repository.ClassFeeDefault, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var defs []*repository.ClassFeeDefault
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		defs, err = s.catalogRepo.ListClassFeeDefaults(ctx, classGroupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// ListOptionalFees lists optional-fee definitions applicable to a class
func (s *CatalogService) ListOptionalFees(ctx context.Context, classGroupID string) ([]*repository.OptionalFeeDefinition, error) {
	schoolID, err := tenant.SchoolID(ctx)
	if err != nil {
		return nil, err
	}

	var defs []*repository.OptionalFeeDefinition
	err = s.db.WithSchool(ctx, schoolID, func(ctx context.Context) error {
		defs, err = s.catalogRepo.ListOptionalFees(ctx, classGroupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}
