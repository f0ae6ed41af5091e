// Package normalize provides the pure field normalization rules applied
// to extracted listing data before identity derivation and storage.
// Every function is deterministic and idempotent: applying it to its own
// output yields the same value.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"golang.org/x/text/width"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonPhoneChars = regexp.MustCompile(`[^\d-]`)
	nonDigits     = regexp.MustCompile(`\D`)
	digitRuns     = regexp.MustCompile(`\d+`)
	phoneFormat   = regexp.MustCompile(`^\d{2,4}-\d{1,4}-\d{4}$`)
	emailFormat   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// dateLayouts lists the accepted establishment-date formats. Single-digit
// layout verbs also accept zero-padded input.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006年1月2日",
	"2006.1.2",
}

// Field applies the normalization rule for the given field kind.
func Field(kind listing.FieldKind, raw string) string {
	switch kind {
	case listing.FieldPhone:
		return Phone(raw)
	case listing.FieldPostalCode:
		return PostalCode(raw)
	case listing.FieldWebsite:
		return URL(raw)
	case listing.FieldEmail:
		return Email(raw)
	case listing.FieldCorporateNumber:
		return CorporateNumber(raw)
	case listing.FieldEstablishedDate:
		return Date(raw)
	case listing.FieldEmployeeCount, listing.FieldAnnualSales:
		return Number(raw)
	default:
		return Text(raw)
	}
}

// Text trims, folds full-width characters to their half-width
// equivalents where one exists, and collapses internal whitespace runs
// (including ideographic spaces) to a single space.
func Text(s string) string {
	s = width.Fold.String(s)
	s = strings.ReplaceAll(s, "　", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Phone canonicalizes a phone number to digit groups joined by hyphens.
// Ten digits format as 2-4-4 (landline), eleven as 3-4-4 (mobile);
// other lengths keep their digits and any existing hyphens.
func Phone(s string) string {
	s = nonPhoneChars.ReplaceAllString(width.Fold.String(s), "")
	if s == "" {
		return ""
	}
	if phoneFormat.MatchString(s) {
		return s
	}
	digits := nonDigits.ReplaceAllString(s, "")
	switch len(digits) {
	case 10:
		return digits[:2] + "-" + digits[2:6] + "-" + digits[6:]
	case 11:
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:]
	default:
		return s
	}
}

// PostalCode canonicalizes a Japanese postal code to NNN-NNNN, dropping
// the 〒 mark and any separators. Six digits get a leading zero; other
// lengths keep their digits and any existing hyphens.
func PostalCode(s string) string {
	s = nonPhoneChars.ReplaceAllString(width.Fold.String(s), "")
	if s == "" {
		return ""
	}
	digits := nonDigits.ReplaceAllString(s, "")
	switch len(digits) {
	case 7:
		return digits[:3] + "-" + digits[3:]
	case 6:
		digits = "0" + digits
		return digits[:3] + "-" + digits[3:]
	default:
		return s
	}
}

// URL trims and width-folds a URL, prepending https:// when no scheme
// is present.
func URL(s string) string {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return s
}

// Email validates and canonicalizes an email address. Invalid addresses
// normalize to the empty string, so they surface as absent fields rather
// than bad data.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(width.Fold.String(s)))
	s = strings.TrimPrefix(s, "mailto:")
	if !emailFormat.MatchString(s) {
		return ""
	}
	return s
}

// CorporateNumber strips everything but digits from a corporate
// registration number.
func CorporateNumber(s string) string {
	return nonDigits.ReplaceAllString(width.Fold.String(s), "")
}

// Date canonicalizes an establishment date to YYYY-MM-DD. Dashed,
// slashed, dotted, and 年月日 forms are accepted; anything unparseable
// normalizes to the empty string so it surfaces as an absent field
// rather than bad data.
func Date(s string) string {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// Number extracts the digits from a counted quantity such as an
// employee headcount or sales figure, dropping thousands separators and
// unit suffixes. No digits at all normalizes to the empty string.
func Number(s string) string {
	s = strings.ReplaceAll(width.Fold.String(s), ",", "")
	runs := digitRuns.FindAllString(s, -1)
	if len(runs) == 0 {
		return ""
	}
	return strings.Join(runs, "")
}
