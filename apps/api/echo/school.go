package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/school"
)

type schoolApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate func(string) echo.MiddlewareFunc, opts *Options) {
	api := schoolApi{
		svc:      opts.SchoolSvc,
		validate: opts.Validate,
	}

	sg := g.Group("/schools")

	// un-authed endpoints
	sg.POST("/register", api.register)
	sg.POST("/login", api.login)

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/logout", api.logout, gate(school.ActionLogout))
	ag.GET("/me", api.retrieve, gate(""))
	ag.PUT("/me", api.update, gate(""))

	// a locked-out school must always reach the renewal flow
	sub := g.Group("/subscription", jwt)
	sub.GET("", api.subscriptionStatus, gate(school.ActionRenewSubscription))
	sub.POST("/renew", api.initializeRenewal, gate(school.ActionRenewSubscription))
	sub.GET("/callback", api.completeRenewal, gate(school.ActionRenewSubscription))
}

// Handlers

func (api *schoolApi) register(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	sch, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *schoolApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *schoolApi) logout(ctx echo.Context) error {
	// tokens are stateless; logout is a client-side discard
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(ctx.Request().Context(), sch, api.validate, api.svc); err != nil {
		return err
	}

	sch, err = api.svc.UpdateSettings(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating school settings")
	}
	ctx.Set(contextSchoolKey, sch)
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) subscriptionStatus(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}
	active, err := api.svc.WithinTrialLimit(ctx.Request().Context(), sch)
	if err != nil {
		return errors.Wrap(err, "checking subscription")
	}
	return ctx.JSON(http.StatusOK, SubscriptionStatusResponse{
		Active:             active,
		SubscriptionExpiry: sch.SubscriptionExpiry.Format("2006-01-02"),
	})
}

func (api *schoolApi) initializeRenewal(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}
	tx, err := api.svc.InitializeRenewal(ctx.Request().Context(), sch)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tx)
}

func (api *schoolApi) completeRenewal(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	reference := ctx.QueryParam("reference")
	if reference == "" {
		reference = ctx.QueryParam("trxref") // Paystack redirect alias
	}
	sch, err = api.svc.CompleteRenewal(ctx.Request().Context(), sch.ID, reference)
	if err != nil {
		return err
	}
	ctx.Set(contextSchoolKey, sch)
	return ctx.JSON(http.StatusOK, sch)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SubscriptionStatusResponse struct {
		Active             bool   `json:"active"`
		SubscriptionExpiry string `json:"subscription_expiry"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
