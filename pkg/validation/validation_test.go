package validation

import (
	"strings"
	"testing"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("a@b.co"))
	assert.True(t, IsEmail("jane.doe@firm.law"))
	assert.False(t, IsEmail("not-an-email"))
	assert.False(t, IsEmail("a @b.co"))
	assert.False(t, IsEmail("a@b"))
	assert.False(t, IsEmail(""))
}

func TestValidator_Step(t *testing.T) {
	v := New(nil)

	credentials := []models.Rule{
		{Field: models.FieldPassword, Check: models.CheckRequired},
		{Field: models.FieldPassword, Check: models.CheckMinLength, Min: 8},
		{Field: models.FieldConfirmPassword, Check: models.CheckMatches, Other: models.FieldPassword},
	}

	tests := []struct {
		name     string
		rules    []models.Rule
		payload  map[models.Field]string
		expected map[models.Field]string
	}{
		{
			name:     "invalid email",
			rules:    []models.Rule{{Field: models.FieldEmail, Check: models.CheckEmail}},
			payload:  map[models.Field]string{models.FieldEmail: "not-an-email"},
			expected: map[models.Field]string{models.FieldEmail: MessageInvalidEmail},
		},
		{
			name:     "valid email",
			rules:    []models.Rule{{Field: models.FieldEmail, Check: models.CheckEmail}},
			payload:  map[models.Field]string{models.FieldEmail: "a@b.co"},
			expected: map[models.Field]string{},
		},
		{
			name:     "missing email",
			rules:    []models.Rule{{Field: models.FieldEmail, Check: models.CheckEmail}},
			payload:  map[models.Field]string{},
			expected: map[models.Field]string{models.FieldEmail: "Email is required"},
		},
		{
			name:  "short password",
			rules: credentials,
			payload: map[models.Field]string{
				models.FieldPassword:        "short",
				models.FieldConfirmPassword: "short",
			},
			expected: map[models.Field]string{models.FieldPassword: "Password must be at least 8 characters"},
		},
		{
			name:  "long matching password",
			rules: credentials,
			payload: map[models.Field]string{
				models.FieldPassword:        "longenough1",
				models.FieldConfirmPassword: "longenough1",
			},
			expected: map[models.Field]string{},
		},
		{
			name:  "mismatched confirmation",
			rules: credentials,
			payload: map[models.Field]string{
				models.FieldPassword:        "longenough1",
				models.FieldConfirmPassword: "longenough2",
			},
			expected: map[models.Field]string{models.FieldConfirmPassword: MessagePasswordMismatch},
		},
		{
			name:     "short message",
			rules:    []models.Rule{{Field: models.FieldMessage, Check: models.CheckMinLength, Min: 10}},
			payload:  map[models.Field]string{models.FieldMessage: strings.Repeat("x", 5)},
			expected: map[models.Field]string{models.FieldMessage: "Message must be at least 10 characters"},
		},
		{
			name:     "long message",
			rules:    []models.Rule{{Field: models.FieldMessage, Check: models.CheckMinLength, Min: 10}},
			payload:  map[models.Field]string{models.FieldMessage: strings.Repeat("x", 12)},
			expected: map[models.Field]string{},
		},
		{
			name:     "blank required field",
			rules:    []models.Rule{{Field: models.FieldTitle, Check: models.CheckRequired}},
			payload:  map[models.Field]string{models.FieldTitle: "   "},
			expected: map[models.Field]string{models.FieldTitle: "Title is required"},
		},
		{
			name:     "custom message",
			rules:    []models.Rule{{Field: models.FieldRole, Check: models.CheckRequired, Message: "Pick a role"}},
			payload:  map[models.Field]string{},
			expected: map[models.Field]string{models.FieldRole: "Pick a role"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, v.Step(tt.rules, tt.payload))
		})
	}
}

func TestNewValidate_EmailTag(t *testing.T) {
	validate := NewValidate()

	type contact struct {
		Email string `validate:"required,lexemail"`
	}

	assert.NoError(t, validate.Struct(contact{Email: "a@b.co"}))
	assert.Error(t, validate.Struct(contact{Email: "not-an-email"}))
}
