package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(ve *ValidationError) []string {
	names := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestValidator_SignupShortPassword(t *testing.T) {
	v := NewValidator(5)
	in := SignupInput{Email: "a@b.com", Password: "abc", ConfirmPassword: "abc"}

	err := v.Struct(in, map[string]string{"email": in.Email})

	ve, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"password"}, fieldNames(ve))
	assert.Equal(t, "min_password", ve.Fields[0].Code)
	assert.Equal(t, "a@b.com", ve.Input["email"])
}

func TestValidator_SignupMismatch(t *testing.T) {
	v := NewValidator(5)
	in := SignupInput{Email: "not-an-email", Password: "secret1", ConfirmPassword: "secret2"}

	ve, ok := IsValidation(v.Struct(in, nil))

	require.True(t, ok)
	assert.ElementsMatch(t, []string{"email", "confirm_password"}, fieldNames(ve))
}

func TestValidator_SignupValid(t *testing.T) {
	v := NewValidator(5)

	err := v.Struct(SignupInput{Email: "a@b.com", Password: "secret", ConfirmPassword: "secret"}, nil)

	assert.NoError(t, err)
}

func TestValidator_Product(t *testing.T) {
	v := NewValidator(5)

	tests := []struct {
		name   string
		input  ProductInput
		fields []string
	}{
		{"valid", ProductInput{Title: "Book", Price: "12.99", Description: "A good book"}, nil},
		{"short title", ProductInput{Title: "Bo", Price: "12.99", Description: "A good book"}, []string{"title"}},
		{"zero price", ProductInput{Title: "Book", Price: "0", Description: "A good book"}, []string{"price"}},
		{"bad price", ProductInput{Title: "Book", Price: "abc", Description: "A good book"}, []string{"price"}},
		{"34 digit price", ProductInput{Title: "Book", Price: "1234567890123456789012345678901234", Description: "A good book"}, nil},
		{"price too precise", ProductInput{Title: "Book", Price: "0.12345678901234567890123456789012345", Description: "A good book"}, []string{"price"}},
		{"price too large", ProductInput{Title: "Book", Price: "123456789012345678901234567890123456", Description: "A good book"}, []string{"price"}},
		{"short description", ProductInput{Title: "Book", Price: "1", Description: "abc"}, []string{"description"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input, tt.input.Echo())
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			ve, ok := IsValidation(err)
			require.True(t, ok)
			assert.Equal(t, tt.fields, fieldNames(ve))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "john@example.com", NormalizeEmail("  John@Example.COM "))
}

func TestResetTokenValid(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	u := &User{ResetToken: "abc", ResetTokenExpiration: &later}

	assert.True(t, u.ResetTokenValid("abc", now))
	assert.False(t, u.ResetTokenValid("abd", now))
	assert.False(t, u.ResetTokenValid("abc", later.Add(time.Second)))
	assert.False(t, (&User{}).ResetTokenValid("", now))
}
