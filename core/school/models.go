package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/money"
)

// School is the tenant root: every student, payment and fee structure hangs
// off exactly one School, and every lookup is scoped by its ID.
type School struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone_number"`

	// ExpectedFeesThisTerm is the manually entered school-wide expectation
	// used by the dashboard rollup. Minor unit.
	ExpectedFeesThisTerm money.Amount `json:"expected_fees_this_term"`

	// SubscriptionExpiry is inclusive: the school retains access through the
	// end of this calendar date. Stored as a UTC date.
	SubscriptionExpiry time.Time `json:"subscription_expiry"`

	// PendingRenewalRef is the gateway reference of an initialized but not
	// yet verified renewal transaction.
	PendingRenewalRef string `json:"-"`

	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (s *School) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *School) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

// NewSchool contains information needed to register a new School.
type NewSchool struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ns *NewSchool) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, ns.Name, ns.Email)
}

// UpdateSchool defines what settings may be modified on an existing School.
// ExpectedFeesThisTerm is a major-unit decimal string; empty leaves the
// stored value untouched.
type UpdateSchool struct {
	Name                 string `json:"name"`
	Address              string `json:"address"`
	Phone                string `json:"phone_number"`
	ExpectedFeesThisTerm string `json:"expected_fees_this_term"`

	expectedFees *money.Amount
}

func (us *UpdateSchool) Validate(ctx context.Context, origSch School, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = origSch.Name
	}
	us.Address = core.CleanString(us.Address)
	us.Phone = core.CleanString(us.Phone)

	if fees := core.CleanString(us.ExpectedFeesThisTerm); fees != "" {
		amt, err := money.ParseMajor(fees)
		if err != nil || amt < 0 {
			return core.NewValidationError(money.ErrInvalidAmount,
				core.FieldError{Field: "expected_fees_this_term", Error: "amount must be a non-negative number"})
		}
		us.expectedFees = &amt
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.Name != origSch.Name {
		return svc.checkUniqueness(ctx, us.Name, "", origSch)
	}
	return nil
}
