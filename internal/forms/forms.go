// Package forms holds the login and sign-up forms shared by the web client
// and the CLI, and turns validation failures into user-facing messages.
package forms

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Login is the login form
type Login struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Registration is the sign-up form
type Registration struct {
	Name            string `json:"name" binding:"required,min=2,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

// same tag gin binds with, so both front ends share one rule set
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return v
}

// Validate checks a form outside of gin's binding
func Validate(form any) error {
	return validate.Struct(form)
}

var fieldMessages = map[string]string{
	"Name.required":            "Name is required",
	"Name.min":                 "Name must be at least 2 characters",
	"Name.max":                 "Name must be less than 100 characters",
	"Email.required":           "Email is required",
	"Email.email":              "Must be valid email",
	"Password.required":        "Password is required",
	"Password.min":             "Password must be at least 8 characters",
	"Password.max":             "Password must be less than 100 characters",
	"ConfirmPassword.required": "Please confirm your password",
	"ConfirmPassword.eqfield":  "Passwords must match",
}

// Messages turns a validation or binding failure into form-level messages
func Messages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"Invalid request body"}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
			msgs = append(msgs, msg)
			continue
		}
		msgs = append(msgs, strings.ToLower(fe.Field())+" is invalid")
	}
	return msgs
}
