package identity

import (
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used when a number carries no country prefix.
var DefaultPhoneRegion = "US"

// NormalizePhone parses a phone number and returns its E.164 form.
// Numbers that do not parse, or parse but are not valid for their region,
// are rejected with ErrInvalidPhoneNumber.
func NormalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidPhoneNumber
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", ErrInvalidPhoneNumber.WithMetadata(map[string]any{
			"phone": raw,
		})
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhoneNumber.WithMetadata(map[string]any{
			"phone": raw,
		})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
