// Package validation wraps go-playground/validator with the field names and
// custom tags used by the order API.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

// Error carries one message per violated constraint.
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return strings.Join(e.Fields, "; ")
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		v.RegisterValidation("plataforma", func(fl validator.FieldLevel) bool {
			return pedido.Plataforma(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Struct validates s and converts validator errors into *Error.
func Struct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("campo '%s' é obrigatório", fe.Field())
	case "min":
		return fmt.Sprintf("campo '%s' deve ser no mínimo %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("campo '%s' deve ser no máximo %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("campo '%s' deve ser maior ou igual a %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("campo '%s' deve ser um e-mail válido", fe.Field())
	case "datetime":
		return fmt.Sprintf("campo '%s' deve estar no formato AAAA-MM-DD", fe.Field())
	case "plataforma":
		return fmt.Sprintf("campo '%s' deve ser PS4, PS4s, PS5 ou PS5s", fe.Field())
	default:
		return fmt.Sprintf("campo '%s' inválido: %s", fe.Field(), fe.Tag())
	}
}
