package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/billing"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/school"
	"github.com/trezcool/karo/core/student"
)

type billingApi struct {
	svc       *billing.Service
	schoolSvc *school.Service
	validate  *validator.Validate
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate func(string) echo.MiddlewareFunc, opts *Options) {
	api := billingApi{
		svc:       opts.BillingSvc,
		schoolSvc: opts.SchoolSvc,
		validate:  opts.Validate,
	}

	fg := g.Group("/fees", jwt, gate(""))
	fg.POST("", api.setFee)
	fg.GET("", api.queryFees)
	fg.DELETE("/:id", api.deleteFee)

	pg := g.Group("/payments", jwt)
	pg.POST("", api.recordPayment, gate(""))
	pg.GET("", api.queryPayments, gate(""))
	// paid-for records stay reachable after lockout
	pg.GET("/:id/receipt", api.receipt, gate(school.ActionViewReceipt))

	g.GET("/dashboard", api.dashboard, jwt, gate(""))
	g.GET("/reports/outstanding", api.totalOutstanding, jwt, gate(""))
}

// Handlers

func (api *billingApi) setFee(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	var data billing.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fs, err := api.svc.SetFee(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "setting fee structure")
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *billingApi) queryFees(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	fees, err := api.svc.QueryFees(ctx.Request().Context(), sch.ID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if fees == nil {
		fees = []billing.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *billingApi) deleteFee(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	if err := api.svc.DeleteFee(ctx.Request().Context(), sch.ID, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *billingApi) recordPayment(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	var data billing.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.RecordPayment(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *billingApi) queryPayments(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	filter := new(billing.PaymentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []billing.Payment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	payments, err := api.svc.QueryPayments(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []billing.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *billingApi) receipt(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	rcpt, err := api.svc.PaymentReceipt(ctx.Request().Context(), sch.ID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ReceiptResponse{
		Payment:     rcpt.Payment,
		Student:     rcpt.Student,
		SchoolName:  sch.Name,
		ExpectedFee: money.FormatPtr(rcpt.ExpectedFee),
		TotalPaid:   rcpt.TotalPaid.String(),
		Outstanding: rcpt.Outstanding.String(),
	})
}

func (api *billingApi) dashboard(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	dash, err := api.svc.SchoolDashboard(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

// totalOutstanding rolls up outstanding balances across the school for a
// billing period (?term=...&session=...).
func (api *billingApi) totalOutstanding(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	total, err := api.svc.TotalOutstanding(
		ctx.Request().Context(), sch.ID,
		ctx.QueryParam("term"), ctx.QueryParam("session"),
	)
	if err != nil {
		return errors.Wrap(err, "computing outstanding rollup")
	}
	return ctx.JSON(http.StatusOK, OutstandingResponse{
		TotalOutstanding: total,
		Display:          total.String(),
	})
}

type (
	ReceiptResponse struct {
		Payment     billing.Payment `json:"payment"`
		Student     student.Student `json:"student"`
		SchoolName  string          `json:"school_name"`
		ExpectedFee string          `json:"expected_fee"` // "N/A" when not configured
		TotalPaid   string          `json:"total_paid"`
		Outstanding string          `json:"outstanding"`
	}

	OutstandingResponse struct {
		TotalOutstanding money.Amount `json:"total_outstanding"` // minor unit
		Display          string       `json:"display"`
	}
)
