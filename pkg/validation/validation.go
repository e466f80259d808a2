// Package validation checks step rules before a flow is allowed to advance.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

// EmailTag is the validator tag for the product's email format.
const EmailTag = "lexemail"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	MessageInvalidEmail     = "Please enter a valid email address"
	MessagePasswordMismatch = "Passwords do not match"
)

// IsEmail reports whether value matches the product's email format.
func IsEmail(value string) bool {
	return emailPattern.MatchString(value)
}

// NewValidate returns a validator with the lexemail tag registered. It is
// shared by request DTO validation and step rules.
func NewValidate() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails on an empty tag or nil func.
	_ = validate.RegisterValidation(EmailTag, func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})

	return validate
}

type Validator struct {
	validate *validator.Validate
}

func New(validate *validator.Validate) *Validator {
	if validate == nil {
		validate = NewValidate()
	}

	return &Validator{validate: validate}
}

// Step evaluates rules against the payload and returns one message per
// failing field. The first failing rule of a field wins.
func (v *Validator) Step(rules []models.Rule, payload map[models.Field]string) map[models.Field]string {
	errs := make(map[models.Field]string)

	for _, rule := range rules {
		if _, failed := errs[rule.Field]; failed {
			continue
		}

		if msg := v.check(rule, payload); msg != "" {
			errs[rule.Field] = msg
		}
	}

	return errs
}

func (v *Validator) check(rule models.Rule, payload map[models.Field]string) string {
	value := payload[rule.Field]

	var failed bool

	switch rule.Check {
	case models.CheckRequired:
		failed = v.validate.Var(strings.TrimSpace(value), "required") != nil
		if failed {
			return messageOr(rule, rule.Field.Label()+" is required")
		}
	case models.CheckEmail:
		if v.validate.Var(strings.TrimSpace(value), "required") != nil {
			return messageOr(rule, rule.Field.Label()+" is required")
		}

		if v.validate.Var(value, EmailTag) != nil {
			return messageOr(rule, MessageInvalidEmail)
		}
	case models.CheckMinLength:
		failed = v.validate.Var(value, fmt.Sprintf("min=%d", rule.Min)) != nil
		if failed {
			return messageOr(rule, fmt.Sprintf("%s must be at least %d characters", rule.Field.Label(), rule.Min))
		}
	case models.CheckMatches:
		if value != payload[rule.Other] {
			return messageOr(rule, MessagePasswordMismatch)
		}
	}

	return ""
}

func messageOr(rule models.Rule, fallback string) string {
	if rule.Message != "" {
		return rule.Message
	}

	return fallback
}
