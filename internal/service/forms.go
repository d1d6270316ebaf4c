package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"yatube/internal/models"

	"github.com/go-playground/validator/v10"
)

// formErrorMessage is the top-level message on every form validation failure.
const formErrorMessage = "Please correct the errors below."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their form name so the boundary can attach errors to inputs.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// PostForm is the submitted create/edit post form.
type PostForm struct {
	Text    string `form:"text" validate:"required"`
	GroupID *uint  `form:"group"`
}

// CommentForm is the submitted comment form.
type CommentForm struct {
	Text string `form:"text" validate:"required"`
}

// LoginForm is the submitted login form.
type LoginForm struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required"`
}

// validateForm checks form and converts failures into a validation AppError
// whose Fields map form field names to messages.
func validateForm(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewInternalError(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return &models.AppError{
		Code:    models.CodeValidation,
		Message: formErrorMessage,
		Fields:  fields,
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	default:
		return "Enter a valid value."
	}
}
