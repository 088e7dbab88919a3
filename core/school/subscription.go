package school

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/money"
)

// RenewalPeriodDays is the access period purchased by one renewal.
const RenewalPeriodDays = 365

// Action kinds checked by ActionAllowed.
const (
	ActionRenewSubscription = "subscription:renew"
	ActionLogout            = "auth:logout"
	ActionViewReceipt       = "receipt:view"
	ActionAuthPages         = "auth:public"
)

// A locked-out school must still be able to pay to unlock itself, and must
// never be locked out of financial records it already paid for.
var alwaysAllowedActions = map[string]bool{
	ActionRenewSubscription: true,
	ActionLogout:            true,
	ActionViewReceipt:       true,
	ActionAuthPages:         true,
}

var (
	// errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrVerificationFailed = errors.New("payment verification failed")
)

type (
	// TransactionRequest is what the gateway needs to initialize a
	// transaction. Amount is in the minor currency unit.
	TransactionRequest struct {
		Email       string
		Amount      money.Amount
		Currency    string
		Reference   string
		CallbackURL string
	}

	InitializedTransaction struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}

	VerifiedTransaction struct {
		Success    bool
		AmountPaid money.Amount // minor unit
	}

	// Gateway abstracts the external payment provider. Implementations must
	// return ErrGatewayUnavailable on any transport failure.
	Gateway interface {
		InitializeTransaction(ctx context.Context, req TransactionRequest) (InitializedTransaction, error)
		VerifyTransaction(ctx context.Context, reference string) (VerifiedTransaction, error)
	}
)

// Today returns the current date at UTC midnight.
func Today() time.Time {
	y, m, d := NowFunc().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WithinTrialLimit reports whether the school is unrestricted: either its
// subscription has not expired (expiry date inclusive), or its roster is
// still under the trial headcount ceiling. The OR is deliberate: time expiry
// alone does not lock out a small school.
func (svc *Service) WithinTrialLimit(ctx context.Context, sch School) (bool, error) {
	if !Today().After(sch.SubscriptionExpiry) {
		return true, nil
	}
	count, err := svc.studentRepo.CountStudents(ctx, sch.ID)
	if err != nil {
		return false, err
	}
	return count < svc.conf.TrialLimit, nil
}

// ActionAllowed decides whether the school may perform the given action
// kind. A denied caller should be redirected toward subscription renewal,
// not hard-failed.
func (svc *Service) ActionAllowed(ctx context.Context, sch School, action string) (bool, error) {
	if alwaysAllowedActions[action] {
		return true, nil
	}
	return svc.WithinTrialLimit(ctx, sch)
}

// InitializeRenewal starts a subscription renewal transaction with the
// gateway and stores the generated reference on the school.
func (svc *Service) InitializeRenewal(ctx context.Context, sch School) (InitializedTransaction, error) {
	ref := "KARO-SUB-" + uuid.New().String()
	tx, err := svc.gateway.InitializeTransaction(ctx, TransactionRequest{
		Email:       sch.Email,
		Amount:      money.Amount(svc.conf.Paystack.SubscriptionAmount),
		Currency:    svc.conf.Paystack.CurrencyCode,
		Reference:   ref,
		CallbackURL: svc.conf.Paystack.CallbackURL,
	})
	if err != nil {
		return InitializedTransaction{}, err
	}

	sch.PendingRenewalRef = ref
	sch.UpdatedAt = NowFunc().UTC()
	if _, err = svc.repo.UpdateSchool(ctx, sch); err != nil {
		return InitializedTransaction{}, err
	}
	return tx, nil
}

// CompleteRenewal verifies the transaction by reference and, on success,
// extends the subscription. The new expiry is RenewalPeriodDays from the
// later of today and the day after the current expiry, so a subscriber
// renewing early loses none of their remaining paid time. Any verification
// failure leaves the school untouched: no partial credit.
func (svc *Service) CompleteRenewal(ctx context.Context, schoolID, reference string) (School, error) {
	sch, err := svc.repo.GetSchool(ctx, schoolID)
	if err != nil {
		return School{}, err
	}
	if reference == "" || reference != sch.PendingRenewalRef {
		return School{}, ErrVerificationFailed
	}

	vt, err := svc.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return School{}, err
	}
	if !vt.Success || vt.AmountPaid < money.Amount(svc.conf.Paystack.SubscriptionAmount) {
		return School{}, ErrVerificationFailed
	}

	start := sch.SubscriptionExpiry.AddDate(0, 0, 1)
	if today := Today(); today.After(start) {
		start = today
	}
	sch.SubscriptionExpiry = start.AddDate(0, 0, RenewalPeriodDays)
	sch.PendingRenewalRef = ""
	sch.UpdatedAt = NowFunc().UTC()

	sch, err = svc.repo.UpdateSchool(ctx, sch)
	if err != nil {
		return School{}, err
	}
	svc.sendRenewalMail(sch)
	return sch, nil
}

func (svc *Service) sendRenewalMail(sch School) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: sch.Name, Address: sch.Email}},
		Subject: "Subscription renewed",
		TextContent: fmt.Sprintf(
			"Hello %s,\n\nYour subscription is active through %s.\n",
			sch.Name, sch.SubscriptionExpiry.Format("02 Jan 2006"),
		),
	})
}
