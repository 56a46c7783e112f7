package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"oficina/internal"
)

var rePartItem = regexp.MustCompile(`(?i)^(\d+)\s*[x×]\s*(.+?)\s*-\s*(?:R\$|US\$|\$|€)?\s*([\d.,]+)$`)

// Parts parses "2x Tela - R$100.00; 1x Bateria - R$50.00". Items that do not
// follow the pattern are kept with quantity 1 and unit price 0.
func Parts(raw string) []internal.PartItem {
	var out []internal.PartItem
	for _, item := range splitList(raw) {
		if m := rePartItem.FindStringSubmatch(item); m != nil {
			qty, qErr := strconv.Atoi(m[1])
			price, pErr := Amount(m[3])
			if qErr == nil && pErr == nil {
				out = append(out, internal.PartItem{Description: m[2], Quantity: qty, UnitPrice: price})
				continue
			}
		}
		out = append(out, internal.PartItem{Description: item, Quantity: 1, UnitPrice: decimal.Zero})
	}
	return out
}

// Payments parses "Pix - 100,00 - 01/02/2024; Cartão - 50,00". Entries
// without a positive amount are dropped.
func Payments(raw string) []internal.Payment {
	var out []internal.Payment
	for _, entry := range splitList(raw) {
		parts := strings.SplitN(entry, "-", 3)
		if len(parts) < 2 {
			continue
		}
		amount, err := Amount(parts[1])
		if err != nil || !amount.IsPositive() {
			continue
		}
		p := internal.Payment{Method: Spaces(parts[0]), Amount: amount}
		if len(parts) == 3 {
			p.PaidAt = Timestamp(parts[2])
		}
		out = append(out, p)
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ";") {
		item = Spaces(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
