package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	metricsvc "github.com/TTR-x/ttr-gestion-sub002/services/metrics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ledgerApi struct {
	svc       ledger.Service
	memberSvc member.Service
	validate  *validator.Validate
	metrics   *metricsvc.Metrics
}

func registerLedgerAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc ledger.Service,
	memberSvc member.Service,
	validate *validator.Validate,
	metrics *metricsvc.Metrics,
) {
	api := ledgerApi{
		svc:       svc,
		memberSvc: memberSvc,
		validate:  validate,
		metrics:   metrics,
	}

	lg := g.Group("/deletions", jwt)
	lg.GET("", api.history)
	lg.POST("", api.softDelete)
	lg.POST("/restore", api.restore)
	lg.GET("/export", api.export, adminMiddleware(memberSvc))

	g.PUT("/entities", api.syncEntity, jwt)
}

func (api *ledgerApi) query(ctx echo.Context) ([]ledger.Entry, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := bindLedgerFilter(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := api.svc.History(ctx.Request().Context(), claims.BusinessID, filter, bindOrdering(ctx, ledger.OrderingFields...)...)
	return entries, errors.Wrap(err, "querying deletion history")
}

func (api *ledgerApi) history(ctx echo.Context) error {
	entries, err := api.query(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *ledgerApi) export(ctx echo.Context) error {
	entries, err := api.query(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = ledger.Export(&buf, entries); err != nil {
		return errors.Wrap(err, "exporting deletion history")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "deletions.xlsx"))
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (api *ledgerApi) syncEntity(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data ledger.EntitySnapshot
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EntitySnapshot")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.SyncEntity(ctx.Request().Context(), claims.BusinessID, data)
	if err != nil {
		return errors.Wrap(err, "syncing entity")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *ledgerApi) softDelete(ctx echo.Context) error {
	m, err := getContextMember(ctx, api.memberSvc)
	if err != nil {
		return err
	}
	var data ledger.NewDeletion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDeletion")
	}
	data.DeletedBy = m.Name
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.SoftDelete(ctx.Request().Context(), m, data)
	if err != nil {
		return errors.Wrap(err, "deleting entity")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *ledgerApi) restore(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data ledger.RestoreRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RestoreRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	data.BusinessID = claims.BusinessID
	data.ActorUID = claims.Subject
	data.ActorDisplayName = claims.Name

	res, err := api.svc.Restore(ctx.Request().Context(), data)
	api.metrics.RecordRestore(restoreOutcome(err))
	if err != nil {
		return errors.Wrap(err, "restoring entity")
	}
	return ctx.JSON(http.StatusOK, res)
}

func restoreOutcome(err error) string {
	switch errors.Cause(err) {
	case nil:
		return "restored"
	case ledger.ErrRestoreAlreadyDone:
		return "already_done"
	case ledger.ErrRestoreNotFound:
		return "not_found"
	case ledger.ErrRestoreNotAllowed:
		return "not_allowed"
	case core.ErrPermissionDenied:
		return "denied"
	}
	return "error"
}
