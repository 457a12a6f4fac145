package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

// adminMiddleware only lets active owners and admins through.
// Roles come from the stored member so a demotion applies before the JWT expires.
func adminMiddleware(svc member.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m, err := getContextMember(ctx, svc)
			if err != nil {
				return err
			}
			if !m.IsAdmin() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// newRateLimitMiddleware limits requests per client IP.
func newRateLimitMiddleware(instance *limiter.Limiter) echo.MiddlewareFunc {
	mw := stdlib.NewMiddleware(instance, stdlib.WithLimitReachedHandler(limitReached))
	return echo.WrapMiddleware(mw.Handler)
}

func limitReached(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte("Too many attempts, please wait a minute and try again.\n"))
}
