package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// bindAndValidate binds the request body into data then validates it.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding request")
	}
	if err := validate.Struct(data); err != nil {
		return err
	}
	return nil
}
