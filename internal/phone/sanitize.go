// Package phone normalizes stored phone numbers and hands them to the
// operating system for dialing.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "US"

// Sanitize returns a dialable form of raw. Valid numbers are formatted as
// E.164; anything else keeps a leading '+' and its digits.
func Sanitize(raw, region string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if region == "" {
		region = DefaultRegion
	}
	region = strings.ToUpper(region)

	if number, err := phonenumbers.Parse(trimmed, region); err == nil && phonenumbers.IsValidNumber(number) {
		return phonenumbers.Format(number, phonenumbers.E164)
	}
	return digitsOnly(trimmed)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Sanitizer returns Sanitize bound to region.
func Sanitizer(region string) func(string) string {
	return func(raw string) string {
		return Sanitize(raw, region)
	}
}
