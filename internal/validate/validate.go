package validate

import (
	"regexp"
	"strconv"
	"strings"

	"satchel/internal/domain"
)

var (
	rePostal = regexp.MustCompile(`^[A-Za-z0-9 -]{3,10}$`)
	rePhone  = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)
	reEmail  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ      = regexp.MustCompile(`^[A-Za-z0-9 _'\\-]{1,50}$`)
	reID     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// MaxLineQty caps a single cart line so one request can not drain a product.
const MaxLineQty = 50

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 80 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(s) > 50 {
		s = s[:50]
	}
	return s, reQ.MatchString(s)
}

func Qty(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > MaxLineQty {
		return MaxLineQty
	}
	return n
}

// LineQty is the JSON-side twin of Qty: out-of-range values are rejected, not clamped.
func LineQty(n int) bool { return n >= 1 && n <= MaxLineQty }

// ID validates a simple resource identifier (product/category ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 60 {
		return "", false
	}
	return s, true
}

// PaymentMethod normalizes the checkout payment selector.
func PaymentMethod(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "cod", "razorpay", "card", "upi":
		return s, true
	}
	return "", false
}

// Address checks required shipping fields and returns the trimmed copy plus
// the name of the first bad field.
func Address(a domain.Address) (domain.Address, string) {
	trim := func(p *string) { *p = strings.TrimSpace(*p) }
	for _, p := range []*string{&a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone} {
		trim(p)
	}
	if _, ok := Name(a.Name); !ok {
		return a, "name"
	}
	if a.Line1 == "" || len(a.Line1) > 120 {
		return a, "line1"
	}
	if len(a.Line2) > 120 {
		return a, "line2"
	}
	if a.City == "" || len(a.City) > 60 {
		return a, "city"
	}
	if !rePostal.MatchString(a.PostalCode) {
		return a, "postalCode"
	}
	if a.Country == "" {
		a.Country = "IN"
	}
	if !rePhone.MatchString(a.Phone) {
		return a, "phone"
	}
	return a, ""
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
