package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/classledger-backend/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveEffectiveFrom(t *testing.T) {
	admission := date(2024, 1, 15)
	now := date(2024, 6, 10)

	t.Run("explicit date wins", func(t *testing.T) {
		explicit := date(2024, 3, 1)
		from, err := ResolveEffectiveFrom(&explicit, &admission, now)
		require.NoError(t, err)
		assert.Equal(t, date(2024, 3, 1), from)
	})

	t.Run("falls back to admission date", func(t *testing.T) {
		from, err := ResolveEffectiveFrom(nil, &admission, now)
		require.NoError(t, err)
		assert.Equal(t, admission, from)
	})

	t.Run("falls back to today without admission date", func(t *testing.T) {
		from, err := ResolveEffectiveFrom(nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, now, from)
	})

	t.Run("rejects date before admission", func(t *testing.T) {
		explicit := date(2024, 1, 1)
		_, err := ResolveEffectiveFrom(&explicit, &admission, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("truncates time component", func(t *testing.T) {
		explicit := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
		from, err := ResolveEffectiveFrom(&explicit, &admission, now)
		require.NoError(t, err)
		assert.Equal(t, date(2024, 3, 1), from)
	})
}

func TestCutoff(t *testing.T) {
	assert.Equal(t, date(2024, 5, 31), Cutoff(date(2024, 6, 1)))
	assert.Equal(t, date(2023, 12, 31), Cutoff(date(2024, 1, 1)))
	assert.Equal(t, date(2024, 2, 29), Cutoff(date(2024, 3, 1)))
}

func TestSupersedeCutoff(t *testing.T) {
	// open window started well before the new one
	assert.Equal(t, date(2024, 6, 14), SupersedeCutoff(date(2024, 6, 15), date(2024, 6, 1)))
	// superseded the day after it opened: closes on its single day
	assert.Equal(t, date(2024, 6, 1), SupersedeCutoff(date(2024, 6, 2), date(2024, 6, 1)))
	// same-day supersession: close date never precedes the window's start
	assert.Equal(t, date(2024, 6, 1), SupersedeCutoff(date(2024, 6, 1), date(2024, 6, 1)))
}

func TestFeeConfigurationValidate(t *testing.T) {
	routeID := "3f2b0c0a-9a3e-4a57-8d0e-1f6a1b2c3d4e"

	t.Run("valid config passes", func(t *testing.T) {
		cfg := FeeConfiguration{
			ClassFeeDiscount: decimal.NewFromInt(200),
			Transport: TransportConfig{
				Enabled:  true,
				RouteID:  &routeID,
				Discount: decimal.NewFromInt(50),
			},
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("negative discounts rejected", func(t *testing.T) {
		cfg := FeeConfiguration{
			ClassFeeDiscount: decimal.NewFromInt(-1),
			OtherFees: []OtherFeeConfig{
				{FeeCategoryID: "c1", Enabled: true, Discount: decimal.NewFromInt(-5)},
			},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Contains(t, appErr.Details, "class_fee_discount")
		assert.Contains(t, appErr.Details, "other_fees[0].discount")
	})

	t.Run("transport enabled requires route", func(t *testing.T) {
		cfg := FeeConfiguration{
			Transport: TransportConfig{Enabled: true},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})
}
