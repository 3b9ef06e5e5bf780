package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classledger/classledger-backend/pkg/errors"
)

// Fee types carried by fee categories.
const (
	FeeTypeTuition   = "tuition"
	FeeTypeTransport = "transport"
	FeeTypeCustom    = "custom"
	FeeTypeOther     = "other"
)

// TransportConfig describes the requested transport entitlement for a student.
type TransportConfig struct {
	Enabled  bool            `json:"enabled"`
	RouteID  *string         `json:"route_id,omitempty" validate:"omitempty,uuid"`
	Discount decimal.Decimal `json:"discount"`
}

// OtherFeeConfig describes one requested optional-fee entitlement.
type OtherFeeConfig struct {
	FeeCategoryID string          `json:"fee_category_id" validate:"required,uuid"`
	Enabled       bool            `json:"enabled"`
	Discount      decimal.Decimal `json:"discount"`
}

// CustomFeeConfig describes one requested custom-fee entitlement.
type CustomFeeConfig struct {
	FeeID    string          `json:"fee_id" validate:"required,uuid"`
	Discount decimal.Decimal `json:"discount"`
	Exempt   bool            `json:"exempt"`
}

// FeeConfiguration is the desired fee setup for a student. Entitlements that
// stay at full price produce no override row: the absence of a row means
// "pay catalog price", not "override disabled".
type FeeConfiguration struct {
	ClassFeeID       *string          `json:"class_fee_id,omitempty" validate:"omitempty,uuid"`
	ClassFeeDiscount decimal.Decimal  `json:"class_fee_discount"`
	Transport        TransportConfig  `json:"transport"`
	OtherFees        []OtherFeeConfig `json:"other_fees"`
	CustomFees       []CustomFeeConfig `json:"custom_fees"`
	Notes            *string          `json:"notes,omitempty"`
}

// Validate checks the configuration amounts. Discounts must not be negative.
func (c *FeeConfiguration) Validate() error {
	details := map[string]string{}

	if c.ClassFeeDiscount.IsNegative() {
		details["class_fee_discount"] = "must not be negative"
	}
	if c.Transport.Discount.IsNegative() {
		details["transport.discount"] = "must not be negative"
	}
	for i, f := range c.OtherFees {
		if f.Discount.IsNegative() {
			details["other_fees["+strconv.Itoa(i)+"].discount"] = "must not be negative"
		}
	}
	for i, f := range c.CustomFees {
		if f.Discount.IsNegative() {
			details["custom_fees["+strconv.Itoa(i)+"].discount"] = "must not be negative"
		}
	}
	if c.Transport.Enabled && c.Transport.RouteID == nil {
		details["transport.route_id"] = "required when transport is enabled"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// ResolveEffectiveFrom picks the start date for the new window: the explicit
// request date, else the student's admission date, else today. A date before
// the admission date is rejected.
func ResolveEffectiveFrom(explicit *time.Time, admissionDate *time.Time, now time.Time) (time.Time, error) {
	var from time.Time
	switch {
	case explicit != nil:
		from = DateOnly(*explicit)
	case admissionDate != nil:
		from = DateOnly(*admissionDate)
	default:
		from = DateOnly(now)
	}

	if admissionDate != nil && from.Before(DateOnly(*admissionDate)) {
		return time.Time{}, errors.ValidationMsg("effective_from cannot be earlier than the student's admission date")
	}
	return from, nil
}

// Cutoff returns the day the superseded window closes on: one day before the
// new window opens.
func Cutoff(effectiveFrom time.Time) time.Time {
	return effectiveFrom.AddDate(0, 0, -1)
}

// SupersedeCutoff returns the close date for an open window that started on
// openFrom and is superseded by a new window starting at effectiveFrom.
// Normally one day before the new window; a window superseded on its own
// first day closes on that day instead, so effective_to never precedes
// effective_from.
func SupersedeCutoff(effectiveFrom, openFrom time.Time) time.Time {
	cutoff := Cutoff(effectiveFrom)
	if cutoff.Before(openFrom) {
		return openFrom
	}
	return cutoff
}

// DateOnly truncates a timestamp to UTC midnight. Effective dates are whole days.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

