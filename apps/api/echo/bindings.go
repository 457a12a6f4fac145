package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
)

const orderingParam = "ordering"

// bindOrdering reads `?ordering=-deleted_at,entity_name`, keeping only allowed fields.
func bindOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

func bindLedgerFilter(ctx echo.Context) (ledger.QueryFilter, error) {
	filter := ledger.QueryFilter{
		WorkspaceID: ctx.QueryParam("workspace_id"),
		EntityType:  ledger.EntityType(ctx.QueryParam("entity_type")),
		EntityID:    ctx.QueryParam("entity_id"),
	}
	if filter.EntityType != "" && !filter.EntityType.Valid() {
		return filter, core.NewValidationError(nil, core.FieldError{Field: "entity_type", Error: "unknown entity type"})
	}
	if val := ctx.QueryParam("restored"); val != "" {
		restored, err := strconv.ParseBool(val)
		if err != nil {
			return filter, core.NewValidationError(nil, core.FieldError{Field: "restored", Error: "must be true or false"})
		}
		filter.Restored = &restored
	}
	return filter, nil
}
