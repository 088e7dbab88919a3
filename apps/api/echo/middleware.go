package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/school"
)

// subscriptionGate blocks authed endpoints once the school is past its trial
// limit. Routes wired with an always-allowed action (renewal, logout, receipt
// view) pass through; everything else answers 402 with a renewal pointer.
func subscriptionGate(svc *school.Service, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := getContextSchool(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context school")
			}
			allowed, err := svc.ActionAllowed(ctx.Request().Context(), sch, action)
			if err != nil {
				return errors.Wrap(err, "checking subscription")
			}
			if !allowed {
				return errSubscriptionExpired
			}
			return next(ctx)
		}
	}
}
