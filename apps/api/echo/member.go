package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

type LoginResponse struct {
	Token string `json:"token"`
}

type memberApi struct {
	svc      member.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerMemberAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc member.Service, conf *core.Config, validate *validator.Validate) {
	api := memberApi{
		svc:      svc,
		conf:     conf,
		validate: validate,
	}

	mg := g.Group("/members")
	mg.POST("/login", api.login)
	mg.GET("/me", api.me, jwt)
}

func (api *memberApi) login(ctx echo.Context) error {
	var data member.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	data.Email = core.CleanString(data.Email, true)
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetMemberClaims(m, api.conf), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *memberApi) me(ctx echo.Context) error {
	m, err := getContextMember(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}
