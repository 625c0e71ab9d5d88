package metacapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalizer prepares customer identifiers before hashing
type Normalizer struct {
	region  string
	lower   cases.Caser
	country string
}

// NewNormalizer creates a normalizer for the given default region
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(region)
	return &Normalizer{
		region:  region,
		lower:   cases.Lower(language.Und),
		country: strings.ToLower(region),
	}
}

// Text trims, lower-cases and NFC-normalizes a free-text value
func (n *Normalizer) Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return norm.NFC.String(n.lower.String(s))
}

// Phone returns the number in E.164 form without the leading plus, the shape
// the conversions API hashes. National numbers are read in the default region.
func (n *Normalizer) Phone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, n.region)
	if err == nil && phonenumbers.IsPossibleNumber(num) {
		return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+")
	}
	return n.fallbackPhone(raw)
}

// fallbackPhone keeps digits and applies the region calling code to numbers
// written with a national trunk prefix
func (n *Normalizer) fallbackPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "00"):
		return digits[2:]
	case strings.HasPrefix(digits, "0"):
		if code := phonenumbers.GetCountryCodeForRegion(n.region); code > 0 {
			return strconv.Itoa(code) + digits[1:]
		}
	}
	return digits
}

// Country returns the lower-cased default country code
func (n *Normalizer) Country() string {
	return n.country
}

// Hash returns the hex SHA-256 of an already normalized value, or "" for an
// empty value
func Hash(normalized string) string {
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

