package billing

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/school"
	"github.com/trezcool/karo/core/student"
)

var (
	// errors
	ErrFeeNotFound     = errors.New("fee structure not found")
	ErrPaymentNotFound = errors.New("payment not found")
)

type (
	Repository interface {
		// UpsertFeeStructure creates or replaces the amount for the
		// (school, class, term, session) key.
		UpsertFeeStructure(ctx context.Context, fs FeeStructure) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, schoolID, class, term, session string) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, schoolID string, ordering []core.DBOrdering) ([]FeeStructure, error)
		DeleteFeeStructure(ctx context.Context, schoolID, id string) error

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		// GetPayment is scoped by schoolID through the owning student.
		GetPayment(ctx context.Context, schoolID, id string) (Payment, error)
		QueryPayments(ctx context.Context, schoolID string, filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error)
		// SumPayments totals a student's payments; term and session restrict
		// the billing period when non-empty.
		SumPayments(ctx context.Context, schoolID, studentID, term, session string) (money.Amount, error)
		// SumSchoolPayments totals all payments recorded for a school.
		SumSchoolPayments(ctx context.Context, schoolID string) (money.Amount, error)
	}

	Service struct {
		repo        Repository
		studentRepo student.Repository
		schoolRepo  school.Repository
		mailSvc     core.EmailService
	}
)

func NewService(repo Repository, studentRepo student.Repository, schoolRepo school.Repository, mailSvc core.EmailService) *Service {
	return &Service{
		repo:        repo,
		studentRepo: studentRepo,
		schoolRepo:  schoolRepo,
		mailSvc:     mailSvc,
	}
}

// SetFee creates or updates the expected fee for a (class, term, session).
func (svc *Service) SetFee(ctx context.Context, schoolID string, nfs NewFeeStructure) (FeeStructure, error) {
	now := time.Now().UTC()
	fs := FeeStructure{
		SchoolID:       schoolID,
		Class:          nfs.Class,
		Term:           nfs.Term,
		Session:        nfs.Session,
		ExpectedAmount: nfs.MinorAmount(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.UpsertFeeStructure(ctx, fs)
}

func (svc *Service) QueryFees(ctx context.Context, schoolID string, ordering []core.DBOrdering) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx, schoolID, ordering)
}

func (svc *Service) DeleteFee(ctx context.Context, schoolID, id string) error {
	return svc.repo.DeleteFeeStructure(ctx, schoolID, id)
}

// RecordPayment validates and persists a single immutable payment. It never
// touches fee structures and never caches a balance: outstanding amounts are
// always derived fresh from the full payment history.
func (svc *Service) RecordPayment(ctx context.Context, schoolID string, np NewPayment) (Payment, error) {
	st, err := svc.studentRepo.GetStudent(ctx, schoolID, np.StudentID)
	if err != nil {
		return Payment{}, err
	}

	p := Payment{
		StudentID:   st.ID,
		Amount:      np.MinorAmount(),
		PaymentType: np.PaymentType,
		Term:        np.Term,
		Session:     np.Session,
		CreatedAt:   time.Now().UTC(),
	}
	p, err = svc.repo.CreatePayment(ctx, p)
	if err != nil {
		return Payment{}, err
	}
	svc.sendReceiptMail(ctx, schoolID, st, p)
	return p, nil
}

func (svc *Service) GetPayment(ctx context.Context, schoolID, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, schoolID, id)
}

func (svc *Service) QueryPayments(ctx context.Context, schoolID string, filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, schoolID, filter, ordering)
}

// ExpectedFee resolves the expected fee for a (class, term, session).
// A missing fee structure resolves to zero: a school may simply not have
// configured that class/period yet.
func (svc *Service) ExpectedFee(ctx context.Context, schoolID, class, term, session string) (money.Amount, error) {
	fs, err := svc.repo.GetFeeStructure(ctx, schoolID, class, term, session)
	if err != nil {
		if err == ErrFeeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return fs.ExpectedAmount, nil
}

// TotalPaid sums a student's payments for the given billing period.
func (svc *Service) TotalPaid(ctx context.Context, schoolID, studentID, term, session string) (money.Amount, error) {
	return svc.repo.SumPayments(ctx, schoolID, studentID, term, session)
}

// Outstanding is max(0, expected - paid). Overpayment never surfaces as a
// negative debt; credit balances are not a concept here.
func (svc *Service) Outstanding(ctx context.Context, schoolID, studentID, class, term, session string) (money.Amount, error) {
	expected, err := svc.ExpectedFee(ctx, schoolID, class, term, session)
	if err != nil {
		return 0, err
	}
	paid, err := svc.TotalPaid(ctx, schoolID, studentID, term, session)
	if err != nil {
		return 0, err
	}
	return (expected - paid).Clamp()
}

// TotalOutstanding rolls up outstanding balances across the whole school for
// the given billing period. Only strictly positive per-student balances
// accumulate: a student in credit contributes zero, not a negative number.
// A naive sum of signed balances is NOT equivalent.
func (svc *Service) TotalOutstanding(ctx context.Context, schoolID, term, session string) (money.Amount, error) {
	students, err := svc.studentRepo.QueryStudents(ctx, schoolID, nil, nil)
	if err != nil {
		return 0, err
	}
	var total money.Amount
	for _, st := range students {
		out, err := svc.Outstanding(ctx, schoolID, st.ID, st.Class, term, session)
		if err != nil {
			return 0, err
		}
		total += out // already clamped per student
	}
	return total, nil
}

type Financials struct {
	ExpectedFee money.Amount `json:"expected_fee"` // minor unit
	TotalPaid   float64      `json:"total_paid"`   // major unit
	Outstanding money.Amount `json:"outstanding"`  // minor unit
	// FeeConfigured lets consumers distinguish "no fee configured" from
	// "fee fully paid"; both yield a zero outstanding balance.
	FeeConfigured bool `json:"fee_configured"`
}

// StudentFinancials computes the three balance values for one student and
// one billing period.
func (svc *Service) StudentFinancials(ctx context.Context, schoolID, studentID, term, session string) (Financials, error) {
	st, err := svc.studentRepo.GetStudent(ctx, schoolID, studentID)
	if err != nil {
		return Financials{}, err
	}

	var configured bool
	expected, err := svc.repo.GetFeeStructure(ctx, schoolID, st.Class, term, session)
	if err != nil && err != ErrFeeNotFound {
		return Financials{}, err
	}
	configured = err == nil

	paid, err := svc.TotalPaid(ctx, schoolID, studentID, term, session)
	if err != nil {
		return Financials{}, err
	}

	return Financials{
		ExpectedFee:   expected.ExpectedAmount,
		TotalPaid:     paid.Major(),
		Outstanding:   (expected.ExpectedAmount - paid).Clamp(),
		FeeConfigured: configured,
	}, nil
}

// Receipt is the full data set the receipt/export consumer renders.
// ExpectedFee is nil when no fee structure covers the payment's period.
type Receipt struct {
	Payment     Payment
	Student     student.Student
	ExpectedFee *money.Amount
	TotalPaid   money.Amount
	Outstanding money.Amount
}

func (svc *Service) PaymentReceipt(ctx context.Context, schoolID, paymentID string) (Receipt, error) {
	p, err := svc.repo.GetPayment(ctx, schoolID, paymentID)
	if err != nil {
		return Receipt{}, err
	}
	st, err := svc.studentRepo.GetStudent(ctx, schoolID, p.StudentID)
	if err != nil {
		return Receipt{}, err
	}

	var expected *money.Amount
	fs, err := svc.repo.GetFeeStructure(ctx, schoolID, st.Class, p.Term, p.Session)
	if err != nil && err != ErrFeeNotFound {
		return Receipt{}, err
	}
	if err == nil {
		expected = &fs.ExpectedAmount
	}

	paid, err := svc.TotalPaid(ctx, schoolID, st.ID, p.Term, p.Session)
	if err != nil {
		return Receipt{}, err
	}

	var outstanding money.Amount
	if expected != nil {
		outstanding = (*expected - paid).Clamp()
	}
	return Receipt{
		Payment:     p,
		Student:     st,
		ExpectedFee: expected,
		TotalPaid:   paid,
		Outstanding: outstanding,
	}, nil
}

type Dashboard struct {
	StudentCount   int          `json:"student_count"`
	TotalCollected money.Amount `json:"total_collected"` // minor unit
	Outstanding    money.Amount `json:"outstanding"`     // minor unit, from School.ExpectedFeesThisTerm
	RecentPayments []Payment    `json:"recent_payments"`
}

// SchoolDashboard computes the landing-page rollup. Outstanding here is
// derived from the school's manually entered expected fees for the term,
// clamped at zero when collections exceed it.
func (svc *Service) SchoolDashboard(ctx context.Context, schoolID string) (Dashboard, error) {
	sch, err := svc.schoolRepo.GetSchool(ctx, schoolID)
	if err != nil {
		return Dashboard{}, err
	}
	count, err := svc.studentRepo.CountStudents(ctx, schoolID)
	if err != nil {
		return Dashboard{}, err
	}
	collected, err := svc.repo.SumSchoolPayments(ctx, schoolID)
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := svc.repo.QueryPayments(ctx, schoolID, &PaymentFilter{Limit: 5},
		[]core.DBOrdering{{Field: "created_at", Ascending: false}})
	if err != nil {
		return Dashboard{}, err
	}
	if recent == nil {
		recent = []Payment{}
	}
	return Dashboard{
		StudentCount:   count,
		TotalCollected: collected,
		Outstanding:    (sch.ExpectedFeesThisTerm - collected).Clamp(),
		RecentPayments: recent,
	}, nil
}

func (svc *Service) sendReceiptMail(ctx context.Context, schoolID string, st student.Student, p Payment) {
	if svc.mailSvc == nil {
		return
	}
	sch, err := svc.schoolRepo.GetSchool(ctx, schoolID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: sch.Name, Address: sch.Email}},
		Subject: "Payment recorded",
		TextContent: fmt.Sprintf(
			"Payment of %s received for %s (%s).\nType: %s\nTerm: %s | Session: %s\nRef: %s",
			p.Amount, st.Name, st.RegNumber, p.PaymentType, p.Term, p.Session, p.ID,
		),
	})
}
