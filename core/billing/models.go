package billing

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/money"
)

// FeeStructure is the expected amount owed by students of a given class for
// a given billing period. Unique per (school, class, term, session).
type FeeStructure struct {
	ID             string       `json:"id"`
	SchoolID       string       `json:"-"`
	Class          string       `json:"class_name"`
	Term           string       `json:"term"`
	Session        string       `json:"session"`
	ExpectedAmount money.Amount `json:"expected_amount"` // minor unit
	CreatedAt      time.Time    `json:"created_at"`      // UTC
	UpdatedAt      time.Time    `json:"updated_at"`      // UTC
}

// Payment is a single recorded fee payment. Immutable once created.
type Payment struct {
	ID          string       `json:"id"`
	StudentID   string       `json:"student_id"`
	Amount      money.Amount `json:"amount"` // minor unit
	PaymentType string       `json:"payment_type"`
	Term        string       `json:"term"`
	Session     string       `json:"session"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
}

// NewFeeStructure contains information needed to set the expected fee for a
// (class, term, session). ExpectedAmount is a major-unit decimal string as
// submitted by the admin form.
type NewFeeStructure struct {
	Class          string `json:"class_name" validate:"required"`
	Term           string `json:"term" validate:"required"`
	Session        string `json:"session" validate:"required"`
	ExpectedAmount string `json:"expected_amount"`

	amount money.Amount
}

func (nfs *NewFeeStructure) Validate(validate *validator.Validate) error {
	nfs.Class = core.CleanString(nfs.Class)
	nfs.Term = core.CleanString(nfs.Term)
	nfs.Session = core.CleanString(nfs.Session)

	amt, err := money.ParseMajor(nfs.ExpectedAmount)
	if err != nil || amt < 0 {
		return core.NewValidationError(money.ErrInvalidAmount,
			core.FieldError{Field: "expected_amount", Error: "amount must be a non-negative number"})
	}
	nfs.amount = amt
	return validate.Struct(nfs)
}

// MinorAmount returns the amount parsed by Validate.
func (nfs *NewFeeStructure) MinorAmount() money.Amount { return nfs.amount }

// NewPayment contains information needed to record a Payment.
// Amount is a major-unit decimal string as submitted by the admin form.
type NewPayment struct {
	StudentID   string `json:"student_id" validate:"required"`
	Amount      string `json:"amount"`
	PaymentType string `json:"payment_type" validate:"required"`
	Term        string `json:"term" validate:"required"`
	Session     string `json:"session" validate:"required"`

	amount money.Amount
}

// Validate checks the amount first (a non-numeric or non-positive amount is
// rejected, not coerced to zero), then the required text fields.
func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.PaymentType = core.CleanString(np.PaymentType)
	np.Term = core.CleanString(np.Term)
	np.Session = core.CleanString(np.Session)

	amt, err := money.ParseMajor(np.Amount)
	if err != nil || amt <= 0 {
		return core.NewValidationError(money.ErrInvalidAmount,
			core.FieldError{Field: "amount", Error: "amount must be a positive number"})
	}
	np.amount = amt
	return validate.Struct(np)
}

// MinorAmount returns the amount parsed by Validate.
func (np *NewPayment) MinorAmount() money.Amount { return np.amount }

type PaymentFilter struct {
	// Search does a case-insensitive match on student name or reg number.
	Search  string `query:"search"`
	Term    string `query:"term"`
	Session string `query:"session"`
	Limit   int    `query:"limit"`
}

func (pf *PaymentFilter) IsEmpty() bool {
	return pf.Search == "" && pf.Term == "" && pf.Session == "" && pf.Limit == 0
}

func (pf *PaymentFilter) Clean() {
	pf.Search = core.CleanString(pf.Search)
	pf.Term = core.CleanString(pf.Term)
	pf.Session = core.CleanString(pf.Session)
}
