package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
)

// validate instancia compartida del validador de DTOs. Usa los nombres del
// tag json en los detalles de error para que coincidan con el cuerpo enviado.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationDetails traduce las violaciones del validador a detalles de campo
// para el cuerpo de error. Devuelve nil si el error no viene del validador.
func validationDetails(err error) []dto.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]dto.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, dto.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}
