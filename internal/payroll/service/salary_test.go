package service_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/classledger-backend/internal/payroll/domain"
	"github.com/classledger/classledger-backend/internal/payroll/repository"
	"github.com/classledger/classledger-backend/internal/payroll/service"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/testutil"
)

const (
	teacherID = "44444444-4444-4444-8444-444444444444"
	recordID  = "55555555-5555-4555-8555-555555555555"
)

func newSalaryService(t *testing.T) (*service.SalaryService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	db := database.NewFromSqlx(mockDB.DB, testutil.NewTestLogger())
	svc := service.NewSalaryService(
		db,
		repository.NewSalaryRepository(db),
		repository.NewStructureRepository(db),
		repository.NewAttendanceRepository(db),
		nil,
		testutil.NewTestLogger(),
	)
	return svc, mockDB
}

func expectTeacher(mockDB *testutil.MockDB) {
	mockDB.ExpectQuery("FROM teachers").
		WithArgs(teacherID).
		WillReturnRows(testutil.MockRows("id", "school_id", "is_active").
			AddRow(teacherID, testutil.TestSchoolID, true))
}

func structureColumns() []string {
	return []string{
		"id", "school_id", "teacher_id", "base_salary", "hra", "other_allowances",
		"fixed_deductions", "salary_cycle", "attendance_based_deduction",
		"effective_from", "effective_to", "is_active", "created_by", "created_at",
	}
}

func salaryColumns() []string {
	return []string{
		"id", "school_id", "teacher_id", "salary_structure_id", "month", "year",
		"gross_salary", "attendance_deduction", "total_deductions", "net_salary",
		"status", "generated_by", "approved_by", "approved_at", "rejection_reason",
		"paid_by", "paid_at", "payment_date", "payment_mode", "payment_proof", "notes",
		"created_at", "updated_at",
	}
}

func salaryRow(status string) *sqlmock.Rows {
	return testutil.MockRows(salaryColumns()...).AddRow(
		recordID, testutil.TestSchoolID, teacherID, "st1", 6, 2024,
		"33000", "2000", "2500", "30500",
		status, testutil.TestActorID, nil, nil, nil,
		nil, nil, nil, nil, nil, nil,
		time.Now(), time.Now(),
	)
}

func TestGenerate_ComputesAndInsertsPendingRecord(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "salary:"+teacherID+":6:2024")
	expectTeacher(mockDB)

	// no existing record for the period
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(teacherID, 6, 2024).
		WillReturnRows(testutil.MockRows(salaryColumns()...))

	mockDB.ExpectQuery("FROM salary_structures").
		WithArgs(teacherID, testutil.Date(2024, 6, 1)).
		WillReturnRows(testutil.MockRows(structureColumns()...).AddRow(
			"st1", testutil.TestSchoolID, teacherID, "30000", "3000", "0",
			"500", "monthly", true,
			testutil.Date(2024, 1, 1), nil, true, testutil.TestActorID, time.Now(),
		))

	mockDB.ExpectQuery("FROM teacher_attendance_days").
		WithArgs(teacherID, testutil.Date(2024, 6, 1), testutil.Date(2024, 6, 30)).
		WillReturnRows(testutil.MockRows("count").AddRow(2))

	mockDB.ExpectQuery("INSERT INTO salary_records").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))

	mockDB.ExpectCommit()

	record, err := svc.Generate(ctx, teacherID, 6, 2024)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, domain.StatusPending, record.Status)
	assert.Equal(t, "st1", record.SalaryStructureID)
	assert.True(t, record.GrossSalary.Equal(testutil.Money(t, "33000")), "gross = %s", record.GrossSalary)
	assert.True(t, record.AttendanceDeduction.Equal(testutil.Money(t, "2000")), "attendance = %s", record.AttendanceDeduction)
	assert.True(t, record.TotalDeductions.Equal(testutil.Money(t, "2500")), "total = %s", record.TotalDeductions)
	assert.True(t, record.NetSalary.Equal(testutil.Money(t, "30500")), "net = %s", record.NetSalary)
	assert.Equal(t, testutil.TestActorID, record.GeneratedBy)

	mockDB.ExpectationsWereMet(t)
}

func TestGenerate_DuplicatePeriod(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "salary:"+teacherID+":6:2024")
	expectTeacher(mockDB)
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(teacherID, 6, 2024).
		WillReturnRows(salaryRow(domain.StatusRejected))
	mockDB.ExpectRollback()

	_, err := svc.Generate(ctx, teacherID, 6, 2024)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUniqueness))
	// rejected records block regeneration too
	assert.Contains(t, err.Error(), "rejected")

	mockDB.ExpectationsWereMet(t)
}

func TestGenerate_NoStructureCoveringMonth(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "salary:"+teacherID+":6:2024")
	expectTeacher(mockDB)
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(teacherID, 6, 2024).
		WillReturnRows(testutil.MockRows(salaryColumns()...))
	mockDB.ExpectQuery("FROM salary_structures").
		WithArgs(teacherID, testutil.Date(2024, 6, 1)).
		WillReturnRows(testutil.MockRows(structureColumns()...))
	mockDB.ExpectRollback()

	_, err := svc.Generate(ctx, teacherID, 6, 2024)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReferential))

	mockDB.ExpectationsWereMet(t)
}

func TestGenerate_InvalidPeriod(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	_, err := svc.Generate(testutil.TestContext(), teacherID, 13, 2024)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}

func TestApprove_PendingRecord(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "")
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusPending))
	mockDB.ExpectExec("UPDATE salary_records").
		WithArgs(recordID, testutil.TestActorID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusApproved))
	mockDB.ExpectCommit()

	record, err := svc.Approve(ctx, recordID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, record.Status)

	mockDB.ExpectationsWereMet(t)
}

func TestApprove_NonPendingRecord(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "")
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusPaid))
	mockDB.ExpectRollback()

	_, err := svc.Approve(ctx, recordID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrState))
	assert.Contains(t, err.Error(), "status is paid, expected pending")

	mockDB.ExpectationsWereMet(t)
}

func TestReject_ReasonTooShort(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	_, err := svc.Reject(testutil.TestContext(), recordID, "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}

// The minimum reason length counts characters, not bytes: four CJK characters
// span twelve bytes but are still too short, while five pass.
func TestReject_ReasonLengthCountsRunes(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	_, err := svc.Reject(testutil.TestContext(), recordID, "出席不良")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	reason := "出席データ不足"
	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "")
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusPending))
	mockDB.ExpectExec("UPDATE salary_records").
		WithArgs(recordID, reason).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusRejected))
	mockDB.ExpectCommit()

	record, err := svc.Reject(testutil.TestContext(), recordID, reason)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, record.Status)

	mockDB.ExpectationsWereMet(t)
}

func TestReject_PendingRecord(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	reason := "insufficient attendance data"

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "")
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusPending))
	mockDB.ExpectExec("UPDATE salary_records").
		WithArgs(recordID, reason).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusRejected))
	mockDB.ExpectCommit()

	record, err := svc.Reject(ctx, recordID, reason)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, record.Status)

	mockDB.ExpectationsWereMet(t)
}

// A rejected record cannot be paid; the error names the actual status.
func TestMarkPaid_RejectedRecord(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "")
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusRejected))
	mockDB.ExpectRollback()

	_, err := svc.MarkPaid(ctx, recordID, service.PaymentDetails{PaymentMode: domain.PaymentModeBank})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrState))
	assert.Contains(t, err.Error(), "status is rejected, expected approved")

	mockDB.ExpectationsWereMet(t)
}

func TestMarkPaid_ApprovedRecord(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	paymentDate := testutil.Date(2024, 7, 1)

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "")
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusApproved))
	mockDB.ExpectExec("UPDATE salary_records").
		WithArgs(recordID, testutil.TestActorID, paymentDate, domain.PaymentModeUPI, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("FROM salary_records").
		WithArgs(recordID).
		WillReturnRows(salaryRow(domain.StatusPaid))
	mockDB.ExpectCommit()

	record, err := svc.MarkPaid(ctx, recordID, service.PaymentDetails{
		PaymentDate: paymentDate,
		PaymentMode: domain.PaymentModeUPI,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, record.Status)

	mockDB.ExpectationsWereMet(t)
}

func TestMarkPaid_InvalidPaymentMode(t *testing.T) {
	svc, mockDB := newSalaryService(t)
	defer mockDB.Close()

	_, err := svc.MarkPaid(testutil.TestContext(), recordID, service.PaymentDetails{PaymentMode: "cheque"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}
