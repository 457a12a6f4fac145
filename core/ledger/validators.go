package ledger

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

var (
	entityTypeTag  = "entitytype"
	entityTypeText = "{0} must be one of client, reservation, stock, expense, investment, quickIncome"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(entityTypeTag, entityTypeValidation)
	core.RegisterCustomTranslation(validate, translator, entityTypeTag, entityTypeText)
}

func entityTypeValidation(fl validator.FieldLevel) bool {
	return EntityType(fl.Field().String()).Valid()
}
