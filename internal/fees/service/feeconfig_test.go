package service_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/classledger-backend/internal/fees/domain"
	"github.com/classledger/classledger-backend/internal/fees/repository"
	"github.com/classledger/classledger-backend/internal/fees/service"
	"github.com/classledger/classledger-backend/pkg/database"
	"github.com/classledger/classledger-backend/pkg/errors"
	"github.com/classledger/classledger-backend/pkg/testutil"
)

const (
	studentID = "11111111-1111-4111-8111-111111111111"
	routeID   = "22222222-2222-4222-8222-222222222222"
	classID   = "33333333-3333-4333-8333-333333333333"
)

func newFeeConfigService(t *testing.T) (*service.FeeConfigService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	db := database.NewFromSqlx(mockDB.DB, testutil.NewTestLogger())
	svc := service.NewFeeConfigService(
		db,
		repository.NewCatalogRepository(db),
		repository.NewLookupRepository(db),
		repository.NewWindowRepository(db),
		nil,
		testutil.NewTestLogger(),
	)
	return svc, mockDB
}

func expectStudent(mockDB *testutil.MockDB, admission time.Time) {
	mockDB.ExpectQuery("FROM students").
		WithArgs(studentID).
		WillReturnRows(testutil.MockRows("id", "school_id", "class_group_id", "admission_date").
			AddRow(studentID, testutil.TestSchoolID, classID, admission))
}

// expectOpenProfile stubs the open-window read that decides the close cutoff.
// A nil from means the student has no open window yet.
func expectOpenProfile(mockDB *testutil.MockDB, from *time.Time) {
	rows := testutil.MockRows(
		"id", "school_id", "student_id", "transport_enabled", "transport_route",
		"effective_from", "effective_to", "is_active", "applied_by", "created_at",
	)
	if from != nil {
		rows.AddRow("p0", testutil.TestSchoolID, studentID, false, nil,
			*from, nil, true, testutil.TestActorID, time.Now())
	}
	mockDB.ExpectQuery("FROM student_fee_profiles").
		WithArgs(studentID).
		WillReturnRows(rows)
}

func expectCloseWindows(mockDB *testutil.MockDB, cutoff time.Time) {
	mockDB.ExpectExec("UPDATE student_fee_overrides").
		WithArgs(studentID, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE student_fee_profiles").
		WithArgs(studentID, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE student_transport_enrollments").
		WithArgs(studentID, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestApplyConfiguration_ClosesAndOpensWindows(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	admission := testutil.Date(2024, 1, 1)
	effectiveFrom := testutil.Date(2024, 6, 1)

	cfg := domain.FeeConfiguration{
		ClassFeeDiscount: decimal.NewFromInt(200),
	}

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, admission)
	prior := testutil.Date(2024, 1, 1)
	expectOpenProfile(mockDB, &prior)

	// class-fee default resolved for the class
	mockDB.ExpectQuery("FROM class_fee_defaults").
		WithArgs(classID, effectiveFrom).
		WillReturnRows(testutil.MockRows(
			"id", "school_id", "class_group_id", "fee_category_id",
			"amount", "fee_cycle", "effective_from", "effective_to", "is_active",
		).AddRow(
			"d1", testutil.TestSchoolID, classID, nil,
			"5000.00", "monthly", testutil.Date(2024, 1, 1), nil, true,
		))

	expectCloseWindows(mockDB, testutil.Date(2024, 5, 31))

	mockDB.ExpectQuery("INSERT INTO student_fee_overrides").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO student_fee_profiles").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	mockDB.ExpectCommit()

	snapshot, err := svc.ApplyConfiguration(ctx, studentID, cfg, &effectiveFrom)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, effectiveFrom, snapshot.EffectiveFrom)
	require.Len(t, snapshot.Overrides, 1)
	assert.Nil(t, snapshot.Overrides[0].FeeCategoryID)
	assert.True(t, snapshot.Overrides[0].DiscountAmount.Equal(decimal.NewFromInt(200)))
	require.NotNil(t, snapshot.Profile)
	assert.False(t, snapshot.Profile.TransportEnabled)
	assert.Nil(t, snapshot.Enrollment)

	mockDB.ExpectationsWereMet(t)
}

// Omitting every entitlement closes the previous windows without opening
// replacement override rows: only the new profile is inserted.
func TestApplyConfiguration_OmittedOverrideClosesWithoutReplacement(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	effectiveFrom := testutil.Date(2024, 6, 1)

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, testutil.Date(2024, 1, 1))
	prior := testutil.Date(2024, 1, 1)
	expectOpenProfile(mockDB, &prior)
	expectCloseWindows(mockDB, testutil.Date(2024, 5, 31))
	mockDB.ExpectQuery("INSERT INTO student_fee_profiles").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	snapshot, err := svc.ApplyConfiguration(ctx, studentID, domain.FeeConfiguration{}, &effectiveFrom)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Overrides)
	require.NotNil(t, snapshot.Profile)
	assert.False(t, snapshot.Profile.TransportEnabled)

	mockDB.ExpectationsWereMet(t)
}

func TestApplyConfiguration_TransportEnablesEnrollment(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	effectiveFrom := testutil.Date(2024, 6, 1)
	route := routeID

	cfg := domain.FeeConfiguration{
		Transport: domain.TransportConfig{
			Enabled:  true,
			RouteID:  &route,
			Discount: decimal.NewFromInt(50),
		},
	}

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, testutil.Date(2024, 1, 1))
	expectOpenProfile(mockDB, nil)

	mockDB.ExpectQuery("FROM transport_routes").
		WithArgs(routeID).
		WillReturnRows(testutil.MockRows("id", "school_id", "name", "is_active").
			AddRow(routeID, testutil.TestSchoolID, "North Loop", true))
	mockDB.ExpectQuery("FROM fee_categories").
		WithArgs(domain.FeeTypeTransport).
		WillReturnRows(testutil.MockRows("id", "school_id", "name", "fee_type", "is_active").
			AddRow("cat-transport", testutil.TestSchoolID, "Transport", "transport", true))

	expectCloseWindows(mockDB, testutil.Date(2024, 5, 31))

	mockDB.ExpectQuery("INSERT INTO student_fee_overrides").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO student_fee_profiles").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO student_transport_enrollments").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	mockDB.ExpectCommit()

	snapshot, err := svc.ApplyConfiguration(ctx, studentID, cfg, &effectiveFrom)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Enrollment)
	assert.Equal(t, routeID, snapshot.Enrollment.RouteID)
	require.NotNil(t, snapshot.Profile)
	assert.True(t, snapshot.Profile.TransportEnabled)
	assert.Equal(t, "North Loop", *snapshot.Profile.TransportRoute)
	require.Len(t, snapshot.Overrides, 1)
	assert.Equal(t, "cat-transport", *snapshot.Overrides[0].FeeCategoryID)

	mockDB.ExpectationsWereMet(t)
}

// Re-applying on the open window's own first day closes it on that day, not
// the day before, so a closed row can never end before it starts.
func TestApplyConfiguration_SameDayReapplyClosesOnStartDay(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	effectiveFrom := testutil.Date(2024, 6, 1)

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, testutil.Date(2024, 1, 1))
	expectOpenProfile(mockDB, &effectiveFrom)
	expectCloseWindows(mockDB, effectiveFrom)
	mockDB.ExpectQuery("INSERT INTO student_fee_profiles").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	snapshot, err := svc.ApplyConfiguration(ctx, studentID, domain.FeeConfiguration{}, &effectiveFrom)
	require.NoError(t, err)
	assert.Equal(t, effectiveFrom, snapshot.EffectiveFrom)

	mockDB.ExpectationsWereMet(t)
}

// Applying the same configuration twice with the same effective date leaves
// one more closed window behind and an open window carrying the same values
// as the first apply produced.
func TestApplyConfiguration_RepeatApplyYieldsEqualOpenWindow(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	effectiveFrom := testutil.Date(2024, 6, 1)
	cfg := domain.FeeConfiguration{ClassFeeDiscount: decimal.NewFromInt(200)}

	expectClassFeeDefault := func() {
		mockDB.ExpectQuery("FROM class_fee_defaults").
			WithArgs(classID, effectiveFrom).
			WillReturnRows(testutil.MockRows(
				"id", "school_id", "class_group_id", "fee_category_id",
				"amount", "fee_cycle", "effective_from", "effective_to", "is_active",
			).AddRow(
				"d1", testutil.TestSchoolID, classID, nil,
				"5000.00", "monthly", testutil.Date(2024, 1, 1), nil, true,
			))
	}
	expectInserts := func() {
		mockDB.ExpectQuery("INSERT INTO student_fee_overrides").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mockDB.ExpectQuery("INSERT INTO student_fee_profiles").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	}

	// first apply: no open window yet
	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, testutil.Date(2024, 1, 1))
	expectOpenProfile(mockDB, nil)
	expectClassFeeDefault()
	expectCloseWindows(mockDB, testutil.Date(2024, 5, 31))
	expectInserts()
	mockDB.ExpectCommit()

	first, err := svc.ApplyConfiguration(ctx, studentID, cfg, &effectiveFrom)
	require.NoError(t, err)

	// second apply with the identical request: the first window closes on
	// its own start day and is replaced
	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, testutil.Date(2024, 1, 1))
	expectOpenProfile(mockDB, &effectiveFrom)
	expectClassFeeDefault()
	expectCloseWindows(mockDB, effectiveFrom)
	expectInserts()
	mockDB.ExpectCommit()

	second, err := svc.ApplyConfiguration(ctx, studentID, cfg, &effectiveFrom)
	require.NoError(t, err)

	assert.Equal(t, first.EffectiveFrom, second.EffectiveFrom)
	require.Len(t, second.Overrides, len(first.Overrides))
	assert.Equal(t, first.Overrides[0].FeeCategoryID, second.Overrides[0].FeeCategoryID)
	assert.True(t, first.Overrides[0].DiscountAmount.Equal(*second.Overrides[0].DiscountAmount))
	assert.Equal(t, first.Overrides[0].IsFullFree, second.Overrides[0].IsFullFree)
	assert.Equal(t, first.Profile.TransportEnabled, second.Profile.TransportEnabled)
	assert.Equal(t, first.Profile.TransportRoute, second.Profile.TransportRoute)

	mockDB.ExpectationsWereMet(t)
}

func TestApplyConfiguration_RejectsDateBeforeAdmission(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	effectiveFrom := testutil.Date(2023, 12, 1)

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, testutil.Date(2024, 1, 1))
	mockDB.ExpectRollback()

	_, err := svc.ApplyConfiguration(ctx, studentID, domain.FeeConfiguration{}, &effectiveFrom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}

func TestApplyConfiguration_UnknownStudent(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	effectiveFrom := testutil.Date(2024, 6, 1)

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	mockDB.ExpectQuery("FROM students").
		WithArgs(studentID).
		WillReturnRows(testutil.MockRows("id", "school_id", "class_group_id", "admission_date"))
	mockDB.ExpectRollback()

	_, err := svc.ApplyConfiguration(ctx, studentID, domain.FeeConfiguration{}, &effectiveFrom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReferential))

	mockDB.ExpectationsWereMet(t)
}

func TestApplyConfiguration_NegativeDiscountRejectedBeforeAnyWrite(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	cfg := domain.FeeConfiguration{ClassFeeDiscount: decimal.NewFromInt(-100)}

	_, err := svc.ApplyConfiguration(testutil.TestContext(), studentID, cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// no database traffic at all
	mockDB.ExpectationsWereMet(t)
}

func TestApplyConfiguration_CloseFailureAbortsOperation(t *testing.T) {
	svc, mockDB := newFeeConfigService(t)
	defer mockDB.Close()

	ctx := testutil.TestContext()
	effectiveFrom := testutil.Date(2024, 6, 1)

	mockDB.ExpectSchoolTx(testutil.TestSchoolID, "student:"+studentID)
	expectStudent(mockDB, testutil.Date(2024, 1, 1))
	expectOpenProfile(mockDB, nil)
	mockDB.ExpectExec("UPDATE student_fee_overrides").
		WithArgs(studentID, testutil.Date(2024, 5, 31)).
		WillReturnError(assert.AnError)
	mockDB.ExpectRollback()

	_, err := svc.ApplyConfiguration(ctx, studentID, domain.FeeConfiguration{}, &effectiveFrom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInconsistent))

	mockDB.ExpectationsWereMet(t)
}
