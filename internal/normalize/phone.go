package normalize

import "strings"

// Phone keeps digits only and prefixes the country calling code to numbers
// with at least 10 digits. Shorter input yields nil.
func Phone(raw, countryCode string) *string {
	digits := strings.TrimLeft(digitsOnly(raw), "0")
	if len(digits) < 10 {
		return nil
	}
	cc := digitsOnly(countryCode)
	if cc != "" && !(strings.HasPrefix(digits, cc) && len(digits) >= len(cc)+10) {
		digits = cc + digits
	}
	return &digits
}
