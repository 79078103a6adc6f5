package prescription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTotalQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"15 tabs", 15},
		{"15", 15},
		{" 30 capsules ", 30},
		{"2x10 capsules", 2},
		{"one bottle", 1},
		{"", 1},
		{"0 tablets", 1},
		{"tabs 15", 1},
		{"99999999999 units", 1},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseTotalQuantity(tc.in), "input %q", tc.in)
	}
}

func TestQuantityForPrefersStructuredColumn(t *testing.T) {
	qty := 42
	m := PrescriptionMedicine{TotalQuantity: "15 tabs", Quantity: &qty}
	assert.Equal(t, 42, QuantityFor(m))
}

func TestQuantityForFallsBackToFreeText(t *testing.T) {
	m := PrescriptionMedicine{TotalQuantity: "15 tabs"}
	assert.Equal(t, 15, QuantityFor(m))

	zero := 0
	m.Quantity = &zero
	assert.Equal(t, 15, QuantityFor(m), "non-positive structured quantity is ignored")
}
