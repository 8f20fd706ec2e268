package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInput(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		raw     any
		pattern string
		wantOK  bool
	}{
		{"valid email", "email", "ada@example.com", "", true},
		{"email with surrounding whitespace", "email", "  ada@example.com  ", "", true},
		{"email missing domain", "email", "ada@", "", false},
		{"email missing at sign", "email", "ada.example.com", "", false},

		{"valid phone", "phone", "+49 30 123456", "", true},
		{"phone with dashes", "phone", "030-123-456", "", true},
		{"phone too short", "phone", "12", "", false},
		{"phone with letters", "phone", "call me", "", false},

		{"valid url", "url", "https://example.com/path", "", true},
		{"url without scheme", "url", "example.com", "", false},
		{"url without host", "url", "https://", "", false},

		{"integer number", "number", "42", "", true},
		{"decimal number", "number", "-3.14", "", true},
		{"non-number", "number", "forty-two", "", false},
		{"numeric input passed as float", "number", 42.5, "", true},

		{"valid date", "date", "2026-02-10", "", true},
		{"date wrong format", "date", "10.02.2026", "", false},
		{"impossible date", "date", "2026-13-40", "", false},

		{"valid time", "time", "09:30", "", true},
		{"time out of range", "time", "25:99", "", false},
		{"time wrong format", "time", "9.30am", "", false},

		{"regex match", "regex", "AB-1234", `^[A-Z]{2}-\d{4}$`, true},
		{"regex mismatch", "regex", "ab1234", `^[A-Z]{2}-\d{4}$`, false},
		{"regex bad pattern", "regex", "anything", `([`, false},

		{"unknown kind", "zipcode", "10115", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkInput(tt.kind, tt.raw, tt.pattern)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCheckInputErrorMessages(t *testing.T) {
	err := checkInput("email", "nope", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid email")

	err = checkInput("zipcode", "10115", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown validation kind "zipcode"`)
}
