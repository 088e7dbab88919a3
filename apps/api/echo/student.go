package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/billing"
	"github.com/trezcool/karo/core/school"
	"github.com/trezcool/karo/core/student"
)

type studentApi struct {
	svc        *student.Service
	billingSvc *billing.Service
	schoolSvc  *school.Service
	validate   *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate func(string) echo.MiddlewareFunc, opts *Options) {
	api := studentApi{
		svc:        opts.StudentSvc,
		billingSvc: opts.BillingSvc,
		schoolSvc:  opts.SchoolSvc,
		validate:   opts.Validate,
	}

	sg := g.Group("/students", jwt, gate(""))
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/financials", api.financials)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.Create(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) query(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	st, err := api.svc.Get(ctx.Request().Context(), sch.ID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

// financials returns the expected/paid/outstanding rollup for one student and
// one billing period (?term=...&session=...).
func (api *studentApi) financials(ctx echo.Context) error {
	sch, err := getContextSchool(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context school")
	}

	fin, err := api.billingSvc.StudentFinancials(
		ctx.Request().Context(), sch.ID, ctx.Param("id"),
		ctx.QueryParam("term"), ctx.QueryParam("session"),
	)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fin)
}
