package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/droszt-service/internal/domain"
)

var platePattern = regexp.MustCompile(`^[A-Z0-9]+(-?[A-Z0-9]+)*$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// usertype - один из типов автомобиля
	_ = v.RegisterValidation("usertype", func(fl validator.FieldLevel) bool {
		return domain.UserType(fl.Field().String()).Valid()
	})
	// plate - номер без пробелов, иначе ломается разбор "{callsign} - {plate}"
	_ = v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return platePattern.MatchString(strings.ToUpper(fl.Field().String()))
	})
	return v
}

// Validate проверяет теги validate у запроса
func Validate(s interface{}) error {
	return validate.Struct(s)
}
