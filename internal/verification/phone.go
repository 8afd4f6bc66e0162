package verification

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone parses number using country as the region hint (ISO 3166
// alpha-2, e.g. "US") and formats it as E.164.
func NormalizePhone(number, country string) (string, error) {
	region := strings.ToUpper(strings.TrimSpace(country))
	parsed, err := phonenumbers.Parse(strings.TrimSpace(number), region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhoneNumber, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidPhoneNumber
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
