package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/school"
)

// service talks to the Paystack transaction API. Any transport or decoding
// failure surfaces as school.ErrGatewayUnavailable so callers can degrade to
// a retry-later flow instead of hard-failing the renewal.
type service struct {
	baseURL string
	secret  string
	client  *http.Client
	logger  core.Logger
}

var _ school.Gateway = (*service)(nil)

func NewService(conf *core.Config, logger core.Logger) *service {
	return &service{
		baseURL: conf.Paystack.BaseURL,
		secret:  conf.Paystack.SecretKey,
		client:  &http.Client{Timeout: conf.Paystack.Timeout},
		logger:  logger,
	}
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"` // minor unit
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"` // "success" when paid
		Amount   int64  `json:"amount"` // minor unit
		Currency string `json:"currency"`
	} `json:"data"`
}

func (svc *service) InitializeTransaction(ctx context.Context, req school.TransactionRequest) (school.InitializedTransaction, error) {
	payload, err := json.Marshal(initializeRequest{
		Email:       req.Email,
		Amount:      int64(req.Amount),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return school.InitializedTransaction{}, errors.Wrap(err, "marshaling initialize request")
	}

	var res initializeResponse
	if err = svc.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(payload), &res); err != nil {
		return school.InitializedTransaction{}, err
	}
	if !res.Status {
		svc.logger.Warn("paystack initialize rejected", res.Message)
		return school.InitializedTransaction{}, school.ErrGatewayUnavailable
	}
	return school.InitializedTransaction{
		AuthorizationURL: res.Data.AuthorizationURL,
		Reference:        res.Data.Reference,
	}, nil
}

func (svc *service) VerifyTransaction(ctx context.Context, reference string) (school.VerifiedTransaction, error) {
	var res verifyResponse
	if err := svc.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &res); err != nil {
		return school.VerifiedTransaction{}, err
	}
	if !res.Status {
		return school.VerifiedTransaction{}, nil
	}
	return school.VerifiedTransaction{
		Success:    res.Data.Status == "success",
		AmountPaid: money.Amount(res.Data.Amount),
	}, nil
}

func (svc *service) do(ctx context.Context, method, path string, body *bytes.Reader, out interface{}) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, svc.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, svc.baseURL+path, nil)
	}
	if err != nil {
		return errors.Wrap(err, "building gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+svc.secret)
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		svc.logger.Error("paystack request failed", err)
		return school.ErrGatewayUnavailable
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusInternalServerError {
		svc.logger.Error("paystack server error", res.Status)
		return school.ErrGatewayUnavailable
	}
	if err = json.NewDecoder(res.Body).Decode(out); err != nil {
		svc.logger.Error("decoding paystack response", err)
		return school.ErrGatewayUnavailable
	}
	return nil
}
