// internal/models/phone.go
package models

import (
	"encoding/json"
	"regexp"
	"strings"

	apperrors "estate-assistant/internal/common/errors"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// PhoneNumber is a validated E.164 number. The zero value is not valid;
// construct with NewPhoneNumber.
type PhoneNumber struct {
	value string
}

// NewPhoneNumber strips common separators and requires an E.164 shape.
// "00" international prefixes are rewritten to "+".
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	s := phoneSeparators.Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if s == "" {
		return PhoneNumber{}, apperrors.NewInvalidRecipientError("phone number is empty")
	}
	if !e164Pattern.MatchString(s) {
		return PhoneNumber{}, apperrors.NewInvalidRecipientError("phone number is not in E.164 format: " + raw)
	}
	return PhoneNumber{value: s}, nil
}

func (p PhoneNumber) String() string { return p.value }

func (p PhoneNumber) IsZero() bool { return p.value == "" }

// Masked hides all but the last four digits, for logs.
func (p PhoneNumber) Masked() string {
	if len(p.value) <= 4 {
		return p.value
	}
	return strings.Repeat("*", len(p.value)-4) + p.value[len(p.value)-4:]
}

func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}
