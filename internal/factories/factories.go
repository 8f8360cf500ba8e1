// Package factories builds demo data: a restaurant menu with option groups
// and combos, coupons, customer profiles and a history of past orders.
package factories

import (
	"math"
	"math/rand"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/jaswdr/faker"
	"github.com/shopspring/decimal"
)

var fake = faker.New()

// UseSeed makes every factory deterministic.
func UseSeed(seed int64) {
	fake = faker.NewWithSeed(rand.NewSource(seed))
}

func price(min, max int) decimal.Decimal {
	return decimal.NewFromInt(int64(fake.IntBetween(min, max))).Add(decimal.RequireFromString("0.90"))
}

// nearby returns a point within radiusKm of origin.
func nearby(origin models.Location, radiusKm float64) models.Location {
	latRange := radiusKm / 111.0
	lonRange := latRange / math.Cos(origin.Lat*math.Pi/180.0)
	return models.Location{
		Lat: origin.Lat + (fake.Float64(6, 0, 2)-1)*latRange,
		Lon: origin.Lon + (fake.Float64(6, 0, 2)-1)*lonRange,
	}
}
