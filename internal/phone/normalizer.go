// Package phone converts customer phone numbers into canonical E.164 form.
package phone

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

const unknownRegion = "ZZ"

// ErrInvalidPhone is returned when a number fails numbering-plan validation.
var ErrInvalidPhone = errors.New("invalid phone number")

// callingCodeRegions maps unambiguous calling codes to their region.
// Shared codes such as 1 (NANP) and 7 (RU/KZ) are left out on purpose so the
// region is inferred from the number itself.
var callingCodeRegions = map[string]string{
	"27":  "ZA",
	"31":  "NL",
	"32":  "BE",
	"33":  "FR",
	"34":  "ES",
	"39":  "IT",
	"41":  "CH",
	"44":  "GB",
	"45":  "DK",
	"46":  "SE",
	"47":  "NO",
	"48":  "PL",
	"49":  "DE",
	"52":  "MX",
	"55":  "BR",
	"61":  "AU",
	"64":  "NZ",
	"65":  "SG",
	"91":  "IN",
	"351": "PT",
	"353": "IE",
	"971": "AE",
}

// Normalize returns the E.164 form of localNumber. regionIndicator may be a
// two-letter region code, a numeric calling code (with or without "+"), or
// empty when localNumber is already international.
func Normalize(localNumber, regionIndicator string) (string, error) {
	number := strings.TrimSpace(localNumber)
	if number == "" {
		return "", ErrInvalidPhone
	}

	if strings.HasPrefix(number, "+") {
		return parseValid(number, "")
	}

	indicator := strings.TrimPrefix(strings.TrimSpace(regionIndicator), "+")
	region, callingCode := resolveIndicator(indicator)

	if region != "" {
		if canonical, err := parseValid(number, region); err == nil {
			return canonical, nil
		}
	}

	if callingCode == "" {
		return "", ErrInvalidPhone
	}

	digits := strings.TrimLeft(digitsOnly(number), "0")
	if digits == "" {
		return "", ErrInvalidPhone
	}

	return parseValid("+"+callingCode+digits, "")
}

// Region reports the ISO region of a canonical number, or "" when unknown.
func Region(canonical string) string {
	num, err := phonenumbers.Parse(canonical, "")
	if err != nil {
		return ""
	}
	if region := phonenumbers.GetRegionCodeForNumber(num); region != "" && region != unknownRegion {
		return region
	}
	if region := phonenumbers.GetRegionCodeForCountryCode(int(num.GetCountryCode())); region != unknownRegion {
		return region
	}
	return ""
}

// Equal reports whether two stored phone representations denote the same
// valid number.
func Equal(a, aRegion, b, bRegion string) bool {
	left, err := Normalize(a, aRegion)
	if err != nil {
		return false
	}
	right, err := Normalize(b, bRegion)
	if err != nil {
		return false
	}
	return left == right
}

func resolveIndicator(indicator string) (region, callingCode string) {
	if indicator == "" {
		return "", ""
	}

	if isNumeric(indicator) {
		return callingCodeRegions[indicator], indicator
	}

	if len(indicator) == 2 {
		region = strings.ToUpper(indicator)
		if code := phonenumbers.GetCountryCodeForRegion(region); code > 0 {
			return region, strconv.Itoa(code)
		}
		return region, ""
	}

	return "", ""
}

func parseValid(number, region string) (string, error) {
	num, err := phonenumbers.Parse(number, region)
	if err != nil {
		return "", ErrInvalidPhone
	}
	// Length alone is not enough: the number must fall in an allocated range.
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
