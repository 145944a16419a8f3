package users

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var simpleEmail = regexp.MustCompile(`\S+@\S+\.\S+`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return simpleEmail.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// FieldErrors holds one message per form field; empty means valid.
type FieldErrors struct {
	Name  string
	Email string
}

// Valid reports whether no field failed.
func (f FieldErrors) Valid() bool {
	return f.Name == "" && f.Email == ""
}

// Map keys the messages by form field name for templates.
func (f FieldErrors) Map() map[string]string {
	out := make(map[string]string, 2)
	if f.Name != "" {
		out["name"] = f.Name
	}
	if f.Email != "" {
		out["email"] = f.Email
	}
	return out
}

// Validate checks presence of both fields and the shape of the email.
func Validate(in Input) FieldErrors {
	var out FieldErrors
	err := validate.Struct(in.Normalize())
	if err == nil {
		return out
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out.Name = err.Error()
		return out
	}
	for _, fe := range fieldErrs {
		switch fe.Field() {
		case "Name":
			out.Name = "Name is required"
		case "Email":
			if fe.Tag() == "required" {
				out.Email = "Email is required"
			} else {
				out.Email = "Please enter a valid email"
			}
		}
	}
	return out
}
