package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reAmountNoise   = regexp.MustCompile(`[^0-9,.]`)
	reDotThousands  = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reCommaThousand = regexp.MustCompile(`^\d{1,3}(?:,\d{3}){2,}$`)
)

// Amount parses money in Brazilian or international notation:
// "150,00", "R$ 1.234,56", "R$100.00", "1,234.56". Empty input is zero.
func Amount(raw string) (decimal.Decimal, error) {
	s := Spaces(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	negative := strings.HasPrefix(s, "-") || (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))

	token := reAmountNoise.ReplaceAllString(s, "")
	token = strings.Trim(token, ".,")
	if token == "" {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}

	d, err := decimal.NewFromString(normalizeNumericToken(token))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func normalizeNumericToken(token string) string {
	lastComma := strings.LastIndex(token, ",")
	lastDot := strings.LastIndex(token, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return strings.ReplaceAll(strings.ReplaceAll(token, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(token, ",", "")
	case lastComma >= 0:
		if reCommaThousand.MatchString(token) {
			return strings.ReplaceAll(token, ",", "")
		}
		return strings.Replace(token, ",", ".", 1)
	case lastDot >= 0:
		if reDotThousands.MatchString(token) {
			return strings.ReplaceAll(token, ".", "")
		}
		return token
	default:
		return token
	}
}
