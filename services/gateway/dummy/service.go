package dummygateway

import (
	"context"

	"github.com/trezcool/karo/core/school"
)

// Service is a scripted gateway for tests and local development. Zero value
// behaves like a gateway that approves everything for the requested amount.
type Service struct {
	InitErr   error
	VerifyErr error

	// Verified is returned by VerifyTransaction when VerifyErr is nil and
	// Scripted is true; otherwise the last initialized amount is echoed back
	// as a successful payment.
	Scripted bool
	Verified school.VerifiedTransaction

	LastRequest school.TransactionRequest
	LastRef     string
}

var _ school.Gateway = (*Service)(nil)

func (svc *Service) InitializeTransaction(_ context.Context, req school.TransactionRequest) (school.InitializedTransaction, error) {
	if svc.InitErr != nil {
		return school.InitializedTransaction{}, svc.InitErr
	}
	svc.LastRequest = req
	return school.InitializedTransaction{
		AuthorizationURL: "https://checkout.example.com/" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (svc *Service) VerifyTransaction(_ context.Context, reference string) (school.VerifiedTransaction, error) {
	if svc.VerifyErr != nil {
		return school.VerifiedTransaction{}, svc.VerifyErr
	}
	svc.LastRef = reference
	if svc.Scripted {
		return svc.Verified, nil
	}
	return school.VerifiedTransaction{Success: true, AmountPaid: svc.LastRequest.Amount}, nil
}
