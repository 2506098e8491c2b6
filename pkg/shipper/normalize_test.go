package shipper_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/pkg/shipper"
)

var postalShape = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"M5H 2N2", "M5H2N2"},
		{"m5h2n2", "M5H2N2"},
		{" l2g 3k7 ", "L2G3K7"},
		{"K1A\t0B1", "K1A0B1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := shipper.NormalizePostalCode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, postalShape, got)

			again, err := shipper.NormalizePostalCode(got)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestNormalizePostalCode_Invalid(t *testing.T) {
	for _, in := range []string{"", "12345", "M5H 2N", "M5H-2N2", "MMM 222"} {
		_, err := shipper.NormalizePostalCode(in)
		assert.ErrorIs(t, err, shipper.ErrInvalidPostalCode, in)
	}
}

func TestNormalizeProvince_FullNames(t *testing.T) {
	names := map[string]string{
		"Alberta":                   "AB",
		"British Columbia":          "BC",
		"Manitoba":                  "MB",
		"New Brunswick":             "NB",
		"Newfoundland and Labrador": "NL",
		"Northwest Territories":     "NT",
		"Nova Scotia":               "NS",
		"Nunavut":                   "NU",
		"Ontario":                   "ON",
		"Prince Edward Island":      "PE",
		"Quebec":                    "QC",
		"Saskatchewan":              "SK",
		"Yukon":                     "YT",
	}

	for name, code := range names {
		got := shipper.NormalizeProvince(name)
		assert.Equal(t, code, got, name)
		assert.Equal(t, got, shipper.NormalizeProvince(got), "idempotent for %s", name)
		assert.True(t, shipper.IsProvinceCode(got))
	}
}

func TestNormalizeProvince_Codes(t *testing.T) {
	assert.Equal(t, "ON", shipper.NormalizeProvince("on"))
	assert.Equal(t, "QC", shipper.NormalizeProvince(" qc "))
	assert.Equal(t, "ZZ", shipper.NormalizeProvince("zz"))
	assert.False(t, shipper.IsProvinceCode("ZZ"))
}

func TestParseStreetAddress(t *testing.T) {
	tests := []struct {
		in         string
		wantNumber string
		wantName   string
	}{
		{"123 Main St", "123", "Main St"},
		{"5875 Falls Ave", "5875", "Falls Ave"},
		{"12A Elm Road", "12A", "Elm Road"},
		{"10-20 King St W", "10-20", "King St W"},
		{"  Rue Principale  ", "0", "Rue Principale"},
		{"PO Box 99", "0", "PO Box 99"},
		{"", "0", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			number, name := shipper.ParseStreetAddress(tt.in)
			assert.Equal(t, tt.wantNumber, number)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestParsePhoneNumber(t *testing.T) {
	tests := []struct {
		in       string
		wantArea string
		wantNum  string
	}{
		{"905-358-1430", "905", "3581430"},
		{"(416) 555 1234", "416", "5551234"},
		{"4165551234", "416", "5551234"},
		{"1-905-358-1430", "000", "0000000"},
		{"555-1234", "000", "0000000"},
		{"", "000", "0000000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := shipper.ParsePhoneNumber(tt.in)
			assert.Equal(t, "1", got.CountryCode)
			assert.Equal(t, tt.wantArea, got.AreaCode)
			assert.Equal(t, tt.wantNum, got.Number)
			assert.Len(t, got.AreaCode+got.Number, 10)
		})
	}
}
