package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "member not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	// domainErrors maps domain sentinel errors to their HTTP representation.
	domainErrors = []struct {
		err  error
		herr *echo.HTTPError
	}{
		{core.ErrPermissionDenied, errHttpForbidden},
		{member.ErrInvalidCredentials, errAuthenticationFailed},
		{member.ErrAccountDeactivated, errAccountDeactivated},
		{member.ErrNotFound, errHttpNotFound},
		{device.ErrNotFound, echo.NewHTTPError(http.StatusNotFound, "device not found")},
		{ledger.ErrEntityNotFound, echo.NewHTTPError(http.StatusNotFound, "entity not found")},
		{ledger.ErrRestoreNotFound, echo.NewHTTPError(http.StatusNotFound, "nothing to restore for this entity")},
		{ledger.ErrRestoreAlreadyDone, echo.NewHTTPError(http.StatusConflict, "this deletion has already been restored")},
		{ledger.ErrRestoreNotAllowed, echo.NewHTTPError(http.StatusConflict, "this deletion cannot be restored")},
	}
)

// httpError returns the HTTP representation of a domain sentinel, or err itself.
func httpError(err error) error {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			return de.herr
		}
	}
	return err
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := httpError(errors.Cause(err))

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var m member.Member
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				m.ID = claims.Subject
				m.BusinessID = claims.BusinessID
				m.Name = claims.Name
				m.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), m)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
