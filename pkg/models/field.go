package models

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned when a field name does not match any known field.
var ErrUnknownField = errors.New("unknown field")

// Field enumerates every input a flow can collect. Flows declare the subset
// they accept, so a misspelled field name is rejected instead of stored.
type Field uint8

const (
	FieldUnknown Field = iota
	FieldEmail
	FieldPassword
	FieldConfirmPassword
	FieldName
	FieldCompany
	FieldLocation
	FieldMessage
	FieldSubject
	FieldTemplate
	FieldTitle
	FieldJurisdiction
	FieldParties
	FieldSpecificRequirements
	FieldRole
	FieldUseCase
	FieldTeamSize
)

// fieldKeys are the payload keys expected by the backend routes.
var fieldKeys = map[Field]string{
	FieldEmail:                "email",
	FieldPassword:             "password",
	FieldConfirmPassword:      "confirmPassword",
	FieldName:                 "name",
	FieldCompany:              "company",
	FieldLocation:             "location",
	FieldMessage:              "message",
	FieldSubject:              "subject",
	FieldTemplate:             "template",
	FieldTitle:                "title",
	FieldJurisdiction:         "jurisdiction",
	FieldParties:              "parties",
	FieldSpecificRequirements: "specificRequirements",
	FieldRole:                 "role",
	FieldUseCase:              "useCase",
	FieldTeamSize:             "teamSize",
}

var fieldLabels = map[Field]string{
	FieldEmail:                "Email",
	FieldPassword:             "Password",
	FieldConfirmPassword:      "Password confirmation",
	FieldName:                 "Name",
	FieldCompany:              "Company",
	FieldLocation:             "Location",
	FieldMessage:              "Message",
	FieldSubject:              "Subject",
	FieldTemplate:             "Template",
	FieldTitle:                "Title",
	FieldJurisdiction:         "Jurisdiction",
	FieldParties:              "Parties",
	FieldSpecificRequirements: "Specific requirements",
	FieldRole:                 "Role",
	FieldUseCase:              "Use case",
	FieldTeamSize:             "Team size",
}

// ParseField resolves a payload key to its Field.
func ParseField(key string) (Field, error) {
	for field, k := range fieldKeys {
		if k == key {
			return field, nil
		}
	}

	return FieldUnknown, fmt.Errorf("%w: %q", ErrUnknownField, key)
}

func (f Field) String() string {
	if key, ok := fieldKeys[f]; ok {
		return key
	}

	return "unknown"
}

// Label is the human readable name used in error messages.
func (f Field) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}

	return "Field"
}

func (f Field) MarshalText() ([]byte, error) {
	if f == FieldUnknown {
		return nil, ErrUnknownField
	}

	return []byte(f.String()), nil
}

func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}

	*f = parsed

	return nil
}
