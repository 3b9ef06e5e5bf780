package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
)

// FeeCategory is reference data naming one kind of fee.
type FeeCategory struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
	FeeType  string `db:"fee_type" json:"fee_type"` // tuition, transport, custom, other
	IsActive bool   `db:"is_active" json:"is_active"`
}

// ClassFeeDefault is the catalog amount a class pays for a category. A NULL
// fee_category_id marks the general class/tuition fee.
type ClassFeeDefault struct {
	ID            string          `db:"id" json:"id"`
	SchoolID      string          `db:"school_id" json:"school_id"`
	ClassGroupID  string          `db:"class_group_id" json:"class_group_id"`
	FeeCategoryID *string         `db:"fee_category_id" json:"fee_category_id,omitempty"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	FeeCycle      string          `db:"fee_cycle" json:"fee_cycle"`
	EffectiveFrom time.Time       `db:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time      `db:"effective_to" json:"effective_to,omitempty"`
	IsActive      bool            `db:"is_active" json:"is_active"`
}

// OptionalFeeDefinition is a catalog fee not mandatory at class level. A NULL
// class_group_id means it applies to every class in the school.
type OptionalFeeDefinition struct {
	ID            string          `db:"id" json:"id"`
	SchoolID      string          `db:"school_id" json:"school_id"`
	ClassGroupID  *string         `db:"class_group_id" json:"class_group_id,omitempty"`
	FeeCategoryID string          `db:"fee_category_id" json:"fee_category_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	FeeCycle      string          `db:"fee_cycle" json:"fee_cycle"`
	EffectiveFrom time.Time       `db:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time      `db:"effective_to" json:"effective_to,omitempty"`
	IsActive      bool            `db:"is_active" json:"is_active"`
}

// CatalogRepository reads fee reference data. The versioning engine treats the
// catalog as slowly-changing input and never mutates it.
// Row-level security scopes every query to the current school.
type CatalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListCategories lists active fee categories
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]*FeeCategory, error) {
	var categories []*FeeCategory
	query := `
		SELECT id, school_id, name, fee_type, is_active
		FROM fee_categories
		WHERE is_active = true
		ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetCategory gets an active fee category by ID
func (r *CatalogRepository) GetCategory(ctx context.Context, id string) (*FeeCategory, error) {
	var category FeeCategory
	query := `
		SELECT id, school_id, name, fee_type, is_active
		FROM fee_categories
		WHERE id = $1 AND is_active = true
	`
	err := r.db.GetContext(ctx, &category, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("fee category")
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategoryByType gets the active fee category of the given fee type
func (r *CatalogRepository) GetCategoryByType(ctx context.Context, feeType string) (*FeeCategory, error) {
	var category FeeCategory
	query := `
		SELECT id, school_id, name, fee_type, is_active
		FROM fee_categories
		WHERE fee_type = $1 AND is_active = true
		ORDER BY name
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &category, query, feeType)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("fee category")
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetClassFeeDefault gets a class-fee default by ID
func (r *CatalogRepository) GetClassFeeDefault(ctx context.Context, id string) (*ClassFeeDefault, error) {
	var def ClassFeeDefault
	query := `
		SELECT d.id, d.school_id, d.class_group_id, d.fee_category_id,
		       d.amount, d.fee_cycle, d.effective_from, d.effective_to, d.is_active
		FROM class_fee_defaults d
		WHERE d.id = $1 AND d.is_active = true
	`
	err := r.db.GetContext(ctx, &def, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("class fee")
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ResolveClassFeeDefault resolves the tuition default for a class: the row
// whose category is tuition, or the row with no category at all.
func (r *CatalogRepository) ResolveClassFeeDefault(ctx context.Context, classGroupID string, onDate time.Time) (*ClassFeeDefault, error) {
	var def ClassFeeDefault
	query := `
		SELECT d.id, d.school_id, d.class_group_id, d.fee_category_id,
		       d.amount, d.fee_cycle, d.effective_from, d.effective_to, d.is_active
		FROM class_fee_defaults d
		LEFT JOIN fee_categories c ON d.fee_category_id = c.id
		WHERE d.class_group_id = $1
		  AND d.is_active = true
		  AND (d.fee_category_id IS NULL OR c.fee_type = 'tuition')
		  AND d.effective_from <= $2
		  AND (d.effective_to IS NULL OR d.effective_to >= $2)
		ORDER BY d.effective_from DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &def, query, classGroupID, onDate)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("class fee")
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListClassFeeDefaults lists active class-fee defaults for a class
func (r *CatalogRepository) ListClassFeeDefaults(ctx context.Context, classGroupID string) ([]*ClassFeeDefault, error) {
	var defs []*ClassFeeDefault
	query := `
		SELECT id, school_id, class_group_id, fee_category_id,
		       amount, fee_cycle, effective_from, effective_to, is_active
		FROM class_fee_defaults
		WHERE class_group_id = $1 AND is_active = true
		ORDER BY effective_from DESC
	`
	if err := r.db.SelectContext(ctx, &defs, query, classGroupID); err != nil {
		return nil, err
	}
	return defs, nil
}

// GetOptionalFee gets an optional-fee definition by ID
func (r *CatalogRepository) GetOptionalFee(ctx context.Context, id string) (*OptionalFeeDefinition, error) {
	var def OptionalFeeDefinition
	query := `
		SELECT id, school_id, class_group_id, fee_category_id,
		       amount, fee_cycle, effective_from, effective_to, is_active
		FROM optional_fee_definitions
		WHERE id = $1 AND is_active = true
	`
	err := r.db.GetContext(ctx, &def, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Referential("fee")
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListOptionalFees lists optional-fee definitions applicable to a class,
// including school-wide definitions with no class binding
func (r *CatalogRepository) ListOptionalFees(ctx context.Context, classGroupID string) ([]*OptionalFeeDefinition, error) {
	var defs []*OptionalFeeDefinition
	query := `
		SELECT id, school_id, class_group_id, fee_category_id,
		       amount, fee_cycle, effective_from, effective_to, is_active
		FROM optional_fee_definitions
		WHERE (class_group_id = $1 OR class_group_id IS NULL) AND is_active = true
		ORDER BY effective_from DESC
	`
	if err := r.db.SelectContext(ctx, &defs, query, classGroupID); err != nil {
		return nil, err
	}
	return defs, nil
}
