package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	metricsvc "github.com/TTR-x/ttr-gestion-sub002/services/metrics"
)

const overrideRequestedMessage = "A confirmation link has been sent to your email address."

type RegisterDeviceResponse struct {
	Device           device.Device `json:"device"`
	KnownDeviceCount int           `json:"known_device_count"`
}

type deviceApi struct {
	svc       device.Service
	memberSvc member.Service
	validate  *validator.Validate
	metrics   *metricsvc.Metrics
}

func registerDeviceAPI(
	g *echo.Group,
	jwt, limit echo.MiddlewareFunc,
	svc device.Service,
	memberSvc member.Service,
	validate *validator.Validate,
	metrics *metricsvc.Metrics,
) {
	api := deviceApi{
		svc:       svc,
		memberSvc: memberSvc,
		validate:  validate,
		metrics:   metrics,
	}

	dg := g.Group("/devices", jwt)
	dg.POST("", api.register)
	dg.GET("", api.list)
	dg.POST("/override", api.requestOverride, limit)
}

func (api *deviceApi) register(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data device.Registration
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Registration")
	}
	if data.UserAgent == "" {
		data.UserAgent = ctx.Request().UserAgent()
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	d, count, err := api.svc.Register(ctx.Request().Context(), claims.BusinessID, data)
	if err != nil {
		return errors.Wrap(err, "registering device")
	}
	return ctx.JSON(http.StatusOK, RegisterDeviceResponse{Device: d, KnownDeviceCount: count})
}

func (api *deviceApi) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	devices, err := api.svc.List(ctx.Request().Context(), claims.BusinessID)
	if err != nil {
		return errors.Wrap(err, "listing devices")
	}
	return ctx.JSON(http.StatusOK, devices)
}

func (api *deviceApi) requestOverride(ctx echo.Context) error {
	m, err := getContextMember(ctx, api.memberSvc)
	if err != nil {
		return err
	}
	var data device.OverrideRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OverrideRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if _, err = api.svc.RequestOverride(ctx.Request().Context(), m, data.KeepDeviceID); err != nil {
		return errors.Wrap(err, "requesting device override")
	}
	api.metrics.RecordOverrideRequest()
	return ctx.JSON(http.StatusAccepted, echo.Map{"message": overrideRequestedMessage})
}

// confirmPage describes how an override confirmation outcome is shown.
type confirmPage struct {
	code    int
	outcome string
	data    pageData
}

var confirmPages = map[error]confirmPage{
	device.ErrTokenMissing: {
		code: http.StatusBadRequest, outcome: "missing",
		data: pageData{Title: "Incomplete link", Status: "error", Message: "The confirmation link is incomplete. Open the link from your email again."},
	},
	device.ErrTokenNotFound: {
		code: http.StatusNotFound, outcome: "not_found",
		data: pageData{Title: "Invalid link", Status: "error", Message: "This confirmation link is not valid. Request a new device override from the app."},
	},
	device.ErrTokenAlreadyUsed: {
		code: http.StatusConflict, outcome: "already_used",
		data: pageData{Title: "Link already used", Status: "error", Message: "This confirmation link has already been used. Each link works only once."},
	},
	device.ErrTokenExpired: {
		code: http.StatusGone, outcome: "expired",
		data: pageData{Title: "Link expired", Status: "expired", Message: "This confirmation link has expired. Request a new device override from the app."},
	},
	device.ErrDeviceReplaceFailure: {
		code: http.StatusInternalServerError, outcome: "replace_failure",
		data: pageData{Title: "Override failed", Status: "error", Message: "Your other devices could not be disconnected. Please try the same link again in a moment."},
	},
}

var (
	confirmSuccessPage = confirmPage{
		code: http.StatusOK, outcome: "confirmed",
		data: pageData{Title: "Device confirmed", Status: "success", Message: "This device is now the only one connected to your business. Your other devices have been disconnected."},
	}
	confirmErrorPage = confirmPage{
		code: http.StatusInternalServerError, outcome: "error",
		data: pageData{Title: "Something went wrong", Status: "error", Message: "The override could not be processed. Please try again later."},
	}
)

func confirmPageFor(err error) confirmPage {
	for sentinel, page := range confirmPages {
		if errors.Is(err, sentinel) {
			return page
		}
	}
	return confirmErrorPage
}

// registerDeviceConfirmPage serves the link sent by email. It answers with HTML, never JSON.
func registerDeviceConfirmPage(
	app *echo.Echo,
	svc device.Service,
	conf *core.Config,
	logger core.Logger,
	metrics *metricsvc.Metrics,
	limit echo.MiddlewareFunc,
) {
	app.GET(device.ConfirmPath, func(ctx echo.Context) error {
		res, err := svc.ConfirmOverride(ctx.Request().Context(), ctx.QueryParam("token"))

		page := confirmSuccessPage
		if err != nil {
			page = confirmPageFor(err)
			if page.code >= http.StatusInternalServerError {
				logger.Error("confirming device override", err)
			}
		} else {
			logger.Info("device override confirmed", map[string]interface{}{
				"business_id": res.Token.BusinessID,
				"kept":        res.Kept,
				"removed":     res.Removed,
			})
		}

		metrics.RecordOverrideConfirmation(page.outcome)
		page.data.AppName = conf.AppName
		return ctx.Render(page.code, confirmOverridePage, page.data)
	}, limit)
}
