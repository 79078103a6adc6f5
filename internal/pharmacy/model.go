package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

type Pharmacy struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	LicenseNo *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result is one pharmacy candidate for a prescription, annotated with the
// distance from the search point.
type Result struct {
	Pharmacy
	DistanceKm float64
}

// StockRequirement is the minimum on-hand quantity of one medicine a
// pharmacy must carry to fulfill a prescription.
type StockRequirement struct {
	MedicineID uuid.UUID
	Quantity   int
}
