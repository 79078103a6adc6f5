package prescription

import "strings"

// ParseTotalQuantity extracts the leading integer from a free-text quantity
// like "15 tabs" or "2x10 capsules". Anything without a usable leading
// number yields 1, matching how the platform has always treated these
// display strings when deriving order line items.
func ParseTotalQuantity(s string) int {
	s = strings.TrimSpace(s)

	n := 0
	seen := false
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
		if n > 1_000_000 {
			// Not a plausible dispense count, treat as garbage
			return 1
		}
	}

	if !seen || n == 0 {
		return 1
	}
	return n
}

// QuantityFor resolves the dispense count for one line item: the structured
// quantity column when present, otherwise the legacy free-text parse.
func QuantityFor(m PrescriptionMedicine) int {
	if m.Quantity != nil && *m.Quantity > 0 {
		return *m.Quantity
	}
	return ParseTotalQuantity(m.TotalQuantity)
}
