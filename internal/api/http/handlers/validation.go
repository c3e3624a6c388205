package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/sukudha/academy-service/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldMessages holds the client-facing text per json field and rule.
var fieldMessages = map[string]string{
	"fullName.required":        "Full name is required",
	"fullName.min":             "Full name must be at least 2 characters",
	"email.required":           "Email is required",
	"email.email":              "Please enter a valid email",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least 6 characters",
	"confirmPassword.required": "Confirm password is required",
	"confirmPassword.eqfield":  "Passwords do not match",
	"isActive.required":        "isActive is required",
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewBadRequest("Invalid request payload")
	}
	return nil
}

// validateStruct turns validator failures into a 422 with one entry per field.
func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewInternalError(err)
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		fields = append(fields, apperrors.FieldError{Field: fe.Field(), Message: msg})
	}
	return apperrors.NewValidationError("Validation failed", fields)
}
