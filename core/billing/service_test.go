package billing_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/billing"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/school"
	"github.com/trezcool/karo/core/student"
	dummymail "github.com/trezcool/karo/services/email/dummy"
	inmemdb "github.com/trezcool/karo/storage/database/inmem"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
}

type fixture struct {
	svc        *billing.Service
	studentSvc *student.Service
	schoolRepo school.Repository
	mailSvc    *dummymail.Service
	sch        school.School
	ctx        context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)

	schoolRepo := inmemdb.NewSchoolRepository(db)
	studentRepo := inmemdb.NewStudentRepository(db)
	mailSvc := dummymail.NewService()

	ctx := context.Background()
	now := time.Now().UTC()
	sch, err := schoolRepo.CreateSchool(ctx, school.School{
		Name:               "Sunrise Academy",
		Email:              "admin@sunrise.test",
		SubscriptionExpiry: now.AddDate(0, 0, 30),
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	require.NoError(t, err)

	return &fixture{
		svc:        billing.NewService(inmemdb.NewBillingRepository(db), studentRepo, schoolRepo, mailSvc),
		studentSvc: student.NewService(studentRepo),
		schoolRepo: schoolRepo,
		mailSvc:    mailSvc,
		sch:        sch,
		ctx:        ctx,
	}
}

func (f *fixture) enroll(t *testing.T, name, class string) student.Student {
	t.Helper()
	st, err := f.studentSvc.Create(f.ctx, f.sch.ID, student.NewStudent{
		Name:      name,
		RegNumber: fmt.Sprintf("REG-%s-%d", name[:1], time.Now().UnixNano()),
		Class:     class,
	})
	require.NoError(t, err)
	return st
}

func (f *fixture) setFee(t *testing.T, class, term, session, amount string) billing.FeeStructure {
	t.Helper()
	nfs := billing.NewFeeStructure{Class: class, Term: term, Session: session, ExpectedAmount: amount}
	require.NoError(t, nfs.Validate(validate))
	fs, err := f.svc.SetFee(f.ctx, f.sch.ID, nfs)
	require.NoError(t, err)
	return fs
}

func (f *fixture) pay(t *testing.T, studentID, amount string) billing.Payment {
	t.Helper()
	np := billing.NewPayment{
		StudentID:   studentID,
		Amount:      amount,
		PaymentType: "Tuition",
		Term:        "First Term",
		Session:     "2025/2026",
	}
	require.NoError(t, np.Validate(validate))
	p, err := f.svc.RecordPayment(f.ctx, f.sch.ID, np)
	require.NoError(t, err)
	return p
}

func TestNewPayment_Validate(t *testing.T) {
	tests := []struct {
		name      string
		data      billing.NewPayment
		wantField string
	}{
		{
			name:      "non-numeric amount",
			data:      billing.NewPayment{StudentID: "s1", Amount: "abc", PaymentType: "Tuition", Term: "First Term", Session: "2025/2026"},
			wantField: "amount",
		},
		{
			name:      "negative amount",
			data:      billing.NewPayment{StudentID: "s1", Amount: "-5", PaymentType: "Tuition", Term: "First Term", Session: "2025/2026"},
			wantField: "amount",
		},
		{
			name:      "zero amount",
			data:      billing.NewPayment{StudentID: "s1", Amount: "0", PaymentType: "Tuition", Term: "First Term", Session: "2025/2026"},
			wantField: "amount",
		},
		{
			name:      "empty amount",
			data:      billing.NewPayment{StudentID: "s1", PaymentType: "Tuition", Term: "First Term", Session: "2025/2026"},
			wantField: "amount",
		},
		{
			// the amount is checked before the required fields
			name:      "bad amount and missing term",
			data:      billing.NewPayment{StudentID: "s1", Amount: "abc", PaymentType: "Tuition", Session: "2025/2026"},
			wantField: "amount",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}

	t.Run("missing term", func(t *testing.T) {
		data := billing.NewPayment{StudentID: "s1", Amount: "100", PaymentType: "Tuition", Session: "2025/2026"}
		err := data.Validate(validate)
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs)
		assert.Equal(t, "term", vErrs[0].Field())
	})

	t.Run("ok, amount rounded to kobo", func(t *testing.T) {
		data := billing.NewPayment{StudentID: "s1", Amount: "2500.505", PaymentType: "Tuition", Term: "First Term", Session: "2025/2026"}
		require.NoError(t, data.Validate(validate))
		assert.EqualValues(t, 250051, data.MinorAmount()) // rounded, not truncated
	})
}

func TestService_Outstanding(t *testing.T) {
	f := newFixture(t)
	st := f.enroll(t, "Ada Obi", "JSS1")
	f.setFee(t, "JSS1", "First Term", "2025/2026", "10000")

	// no payments yet: outstanding equals the expected fee
	out, err := f.svc.Outstanding(f.ctx, f.sch.ID, st.ID, "JSS1", "First Term", "2025/2026")
	require.NoError(t, err)
	assert.EqualValues(t, 1000000, out)

	// partial payments accumulate in minor units with no float drift
	f.pay(t, st.ID, "2500.50")
	f.pay(t, st.ID, "499.50")
	out, err = f.svc.Outstanding(f.ctx, f.sch.ID, st.ID, "JSS1", "First Term", "2025/2026")
	require.NoError(t, err)
	assert.EqualValues(t, 700000, out)

	paid, err := f.svc.TotalPaid(f.ctx, f.sch.ID, st.ID, "First Term", "2025/2026")
	require.NoError(t, err)
	assert.EqualValues(t, 300000, paid)

	// overpayment clamps at zero, never a negative debt
	f.pay(t, st.ID, "9000")
	out, err = f.svc.Outstanding(f.ctx, f.sch.ID, st.ID, "JSS1", "First Term", "2025/2026")
	require.NoError(t, err)
	assert.EqualValues(t, 0, out)
}

func TestService_Outstanding_noFeeConfigured(t *testing.T) {
	f := newFixture(t)
	st := f.enroll(t, "Ada Obi", "JSS1")

	// a missing fee structure resolves to zero expected, zero outstanding
	expected, err := f.svc.ExpectedFee(f.ctx, f.sch.ID, "JSS1", "First Term", "2025/2026")
	require.NoError(t, err)
	assert.EqualValues(t, 0, expected)

	out, err := f.svc.Outstanding(f.ctx, f.sch.ID, st.ID, "JSS1", "First Term", "2025/2026")
	require.NoError(t, err)
	assert.EqualValues(t, 0, out)
}

func TestService_TotalOutstanding_excludesCredit(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "Ada Obi", "JSS1")
	b := f.enroll(t, "Bola Eze", "JSS1")
	f.setFee(t, "JSS1", "First Term", "2025/2026", "5000")

	// A paid nothing: owes 5,000. B overpaid by 2,000: contributes zero,
	// not -2,000. A naive signed sum would report 3,000.
	f.pay(t, b.ID, "7000")

	total, err := f.svc.TotalOutstanding(f.ctx, f.sch.ID, "First Term", "2025/2026")
	require.NoError(t, err)
	assert.EqualValues(t, 500000, total)
}

func TestService_RecordPayment(t *testing.T) {
	f := newFixture(t)
	st := f.enroll(t, "Ada Obi", "JSS1")

	p := f.pay(t, st.ID, "1500")
	assert.NotEmpty(t, p.ID)
	assert.EqualValues(t, 150000, p.Amount)

	// a receipt notification goes out to the school
	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Payment recorded", sent[0].Subject)
	assert.Equal(t, f.sch.Email, sent[0].To[0].Address)
}

func TestService_RecordPayment_unknownStudent(t *testing.T) {
	f := newFixture(t)
	st := f.enroll(t, "Ada Obi", "JSS1")

	np := billing.NewPayment{StudentID: "missing", Amount: "100", PaymentType: "Tuition", Term: "First Term", Session: "2025/2026"}
	require.NoError(t, np.Validate(validate))
	_, err := f.svc.RecordPayment(f.ctx, f.sch.ID, np)
	assert.Equal(t, student.ErrNotFound, err)

	// a student enrolled under another school is equally invisible
	np.StudentID = st.ID
	_, err = f.svc.RecordPayment(f.ctx, "other-school", np)
	assert.Equal(t, student.ErrNotFound, err)
}

func TestService_SetFee_upsert(t *testing.T) {
	f := newFixture(t)

	first := f.setFee(t, "JSS1", "First Term", "2025/2026", "10000")
	assert.EqualValues(t, 1000000, first.ExpectedAmount)

	// same (class, term, session) key replaces the amount
	second := f.setFee(t, "JSS1", "First Term", "2025/2026", "12000")
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1200000, second.ExpectedAmount)

	fees, err := f.svc.QueryFees(f.ctx, f.sch.ID, nil)
	require.NoError(t, err)
	assert.Len(t, fees, 1)

	// a different period is a new row
	f.setFee(t, "JSS1", "Second Term", "2025/2026", "10000")
	fees, err = f.svc.QueryFees(f.ctx, f.sch.ID, nil)
	require.NoError(t, err)
	assert.Len(t, fees, 2)
}

func TestService_DeleteFee(t *testing.T) {
	f := newFixture(t)
	fs := f.setFee(t, "JSS1", "First Term", "2025/2026", "10000")

	require.NoError(t, f.svc.DeleteFee(f.ctx, f.sch.ID, fs.ID))
	assert.Equal(t, billing.ErrFeeNotFound, f.svc.DeleteFee(f.ctx, f.sch.ID, fs.ID))

	// deleting across tenants is a not-found, not a delete
	fs = f.setFee(t, "JSS2", "First Term", "2025/2026", "10000")
	assert.Equal(t, billing.ErrFeeNotFound, f.svc.DeleteFee(f.ctx, "other-school", fs.ID))
}

func TestService_StudentFinancials(t *testing.T) {
	f := newFixture(t)
	st := f.enroll(t, "Ada Obi", "JSS1")

	// fee not configured: zero outstanding but flagged as unconfigured,
	// so "nothing to pay" is distinguishable from "fully paid"
	fin, err := f.svc.StudentFinancials(f.ctx, f.sch.ID, st.ID, "First Term", "2025/2026")
	require.NoError(t, err)
	assert.False(t, fin.FeeConfigured)
	assert.EqualValues(t, 0, fin.Outstanding)

	f.setFee(t, "JSS1", "First Term", "2025/2026", "10000")
	f.pay(t, st.ID, "3000")

	fin, err = f.svc.StudentFinancials(f.ctx, f.sch.ID, st.ID, "First Term", "2025/2026")
	require.NoError(t, err)
	assert.True(t, fin.FeeConfigured)
	assert.EqualValues(t, 1000000, fin.ExpectedFee)
	assert.Equal(t, 3000.0, fin.TotalPaid) // major unit at the boundary
	assert.EqualValues(t, 700000, fin.Outstanding)
}

func TestService_PaymentReceipt(t *testing.T) {
	f := newFixture(t)
	st := f.enroll(t, "Ada Obi", "JSS1")

	// receipt without a configured fee: expected is nil, displayed as N/A
	p := f.pay(t, st.ID, "3000")
	rcpt, err := f.svc.PaymentReceipt(f.ctx, f.sch.ID, p.ID)
	require.NoError(t, err)
	assert.Nil(t, rcpt.ExpectedFee)
	assert.Equal(t, "N/A", money.FormatPtr(rcpt.ExpectedFee))
	assert.EqualValues(t, 300000, rcpt.TotalPaid)
	assert.EqualValues(t, 0, rcpt.Outstanding)

	f.setFee(t, "JSS1", "First Term", "2025/2026", "10000")
	rcpt, err = f.svc.PaymentReceipt(f.ctx, f.sch.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, rcpt.ExpectedFee)
	assert.EqualValues(t, 1000000, *rcpt.ExpectedFee)
	assert.EqualValues(t, 700000, rcpt.Outstanding)
	assert.Equal(t, st.ID, rcpt.Student.ID)

	// scoped through the owning student
	_, err = f.svc.PaymentReceipt(f.ctx, "other-school", p.ID)
	assert.Equal(t, billing.ErrPaymentNotFound, err)
}

func TestService_QueryPayments(t *testing.T) {
	f := newFixture(t)
	a := f.enroll(t, "Ada Obi", "JSS1")
	b := f.enroll(t, "Bola Eze", "JSS2")
	f.pay(t, a.ID, "1000")
	f.pay(t, b.ID, "2000")

	all, err := f.svc.QueryPayments(f.ctx, f.sch.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// search matches the owning student's name
	got, err := f.svc.QueryPayments(f.ctx, f.sch.ID, &billing.PaymentFilter{Search: "bola"}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].StudentID)

	// another tenant sees nothing
	got, err = f.svc.QueryPayments(f.ctx, "other-school", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_SchoolDashboard(t *testing.T) {
	f := newFixture(t)

	// school-wide expectation entered manually in settings: NGN 20,000
	f.sch.ExpectedFeesThisTerm = 2000000
	_, err := f.schoolRepo.UpdateSchool(f.ctx, f.sch)
	require.NoError(t, err)

	a := f.enroll(t, "Ada Obi", "JSS1")
	b := f.enroll(t, "Bola Eze", "JSS2")
	for i := 0; i < 4; i++ {
		f.pay(t, a.ID, "1000")
	}
	f.pay(t, b.ID, "2000")
	f.pay(t, b.ID, "3000")

	dash, err := f.svc.SchoolDashboard(f.ctx, f.sch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.StudentCount)
	assert.EqualValues(t, 900000, dash.TotalCollected)           // 9,000 collected
	assert.EqualValues(t, 1100000, dash.Outstanding)             // 20,000 - 9,000
	assert.Len(t, dash.RecentPayments, 5)                        // capped
	assert.EqualValues(t, 300000, dash.RecentPayments[0].Amount) // most recent first

	// collections beyond the expectation clamp at zero
	f.pay(t, b.ID, "50000")
	dash, err = f.svc.SchoolDashboard(f.ctx, f.sch.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, dash.Outstanding)
}
