package shipper

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	postalCodePattern = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)
	streetPattern     = regexp.MustCompile(`^(\d+[\w-]*)\s+(.+)$`)
)

var provinceNames = map[string]string{
	"alberta":                   "AB",
	"british columbia":          "BC",
	"manitoba":                  "MB",
	"new brunswick":             "NB",
	"newfoundland and labrador": "NL",
	"northwest territories":     "NT",
	"nova scotia":               "NS",
	"nunavut":                   "NU",
	"ontario":                   "ON",
	"prince edward island":      "PE",
	"quebec":                    "QC",
	"québec":                    "QC",
	"saskatchewan":              "SK",
	"yukon":                     "YT",
}

var provinceCodes = map[string]bool{
	"AB": true, "BC": true, "MB": true, "NB": true, "NL": true, "NT": true, "NS": true,
	"NU": true, "ON": true, "PE": true, "QC": true, "SK": true, "YT": true,
}

// FormatPostalCode strips all whitespace and uppercases the result.
func FormatPostalCode(postalCode string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, postalCode))
}

// NormalizePostalCode formats a Canadian postal code and rejects anything
// that is not in A1A1A1 shape after formatting.
func NormalizePostalCode(postalCode string) (string, error) {
	formatted := FormatPostalCode(postalCode)
	if !postalCodePattern.MatchString(formatted) {
		return "", ErrInvalidPostalCode
	}
	return formatted, nil
}

// NormalizeProvince maps full English province names to their two-letter
// code. Codes pass through uppercased; unknown input is returned uppercased.
func NormalizeProvince(province string) string {
	trimmed := strings.TrimSpace(province)
	if code, ok := provinceNames[strings.ToLower(trimmed)]; ok {
		return code
	}
	return strings.ToUpper(trimmed)
}

// IsProvinceCode reports whether code is one of the 13 Canadian codes.
func IsProvinceCode(code string) bool {
	return provinceCodes[code]
}

// ParseStreetAddress splits "123 Main St" into ("123", "Main St"). Streets
// without a leading number get "0" as their number.
func ParseStreetAddress(street string) (number, name string) {
	trimmed := strings.TrimSpace(street)
	if trimmed == "" {
		return "0", "Unknown"
	}
	if m := streetPattern.FindStringSubmatch(trimmed); m != nil {
		return m[1], m[2]
	}
	return "0", trimmed
}

// ParsePhoneNumber keeps the digits of phone and splits a 10-digit result
// into area code and subscriber number. Anything else becomes 000/0000000.
func ParsePhoneNumber(phone string) Phone {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) != 10 {
		return Phone{CountryCode: "1", AreaCode: "000", Number: "0000000"}
	}
	return Phone{CountryCode: "1", AreaCode: digits[:3], Number: digits[3:]}
}
