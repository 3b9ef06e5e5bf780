package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Salary record statuses. The only legal transitions are
// pending -> approved -> paid and pending -> rejected; rejected is terminal
// for the (teacher, month, year) key.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusPaid     = "paid"
)

// Payment modes accepted when marking a salary paid.
const (
	PaymentModeBank = "bank"
	PaymentModeCash = "cash"
	PaymentModeUPI  = "upi"
)

// IsValidPaymentMode reports whether the mode is one of bank, cash or upi.
func IsValidPaymentMode(mode string) bool {
	switch mode {
	case PaymentModeBank, PaymentModeCash, PaymentModeUPI:
		return true
	}
	return false
}

// attendanceDivisor is fixed at 30 regardless of the actual days in the
// month. Not calendar-accurate; a documented simplification kept for parity
// with historical payroll records.
var attendanceDivisor = decimal.NewFromInt(30)

// Computation is the monetary breakdown of one monthly salary.
type Computation struct {
	Gross               decimal.Decimal
	AttendanceDeduction decimal.Decimal
	TotalDeductions     decimal.Decimal
	Net                 decimal.Decimal
}

// Compute derives the monthly salary amounts from a structure's components
// and the number of absent days:
//
//	gross = base + hra + other_allowances
//	attendance_deduction = absentDays * (base / 30) when attendance-based
//	total_deductions = fixed_deductions + attendance_deduction
//	net = gross - total_deductions
//
// Net may go negative; the caller decides whether to warn.
func Compute(base, hra, otherAllowances, fixedDeductions decimal.Decimal, attendanceBased bool, absentDays int) Computation {
	gross := base.Add(hra).Add(otherAllowances)

	attendanceDeduction := decimal.Zero
	if attendanceBased && absentDays > 0 {
		perDay := base.Div(attendanceDivisor)
		attendanceDeduction = perDay.Mul(decimal.NewFromInt(int64(absentDays))).Round(2)
	}

	totalDeductions := fixedDeductions.Add(attendanceDeduction)

	return Computation{
		Gross:               gross,
		AttendanceDeduction: attendanceDeduction,
		TotalDeductions:     totalDeductions,
		Net:                 gross.Sub(totalDeductions),
	}
}

// MonthBounds returns the first and last day of a month as UTC dates.
func MonthBounds(month, year int) (time.Time, time.Time) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// ValidatePeriod checks the (month, year) generation key.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	if year < 2000 || year > 2100 {
		return fmt.Errorf("year must be between 2000 and 2100, got %d", year)
	}
	return nil
}
