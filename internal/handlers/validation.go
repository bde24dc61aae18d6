package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/models"
)

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}

func validateStruct(s any) []ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Message: err.Error()}}
	}

	details := make([]ValidationError, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		details = append(details, ValidationError{
			Field:   fieldErr.Field(),
			Tag:     fieldErr.Tag(),
			Message: validationMessage(fieldErr),
		})
	}
	return details
}

func validationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "datetime":
		return err.Field() + " must match " + err.Param()
	case "timeofday":
		return err.Field() + " must be a time of day in HH:MM form"
	case "oneof":
		return err.Field() + " must be one of " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}

// parseBody decodes and validates the request body. It writes the 400
// response itself and reports false when the handler should stop.
func parseBody(c *fiber.Ctx, out any) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if details := validateStruct(out); len(details) > 0 {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation failed",
			"details": details,
		})
	}
	return true, nil
}
