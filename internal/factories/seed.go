package factories

import (
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
)

// Seed is a complete demo data set for one tenant.
type Seed struct {
	Products     []*models.Product
	OptionGroups []*models.OptionGroup
	Coupons      []*models.Coupon
	Profiles     []*models.CustomerProfile
	Orders       []*models.Order
}

type SeedOptions struct {
	TenantID string
	Origin   models.Location
	RadiusKm float64
	Delivery models.DeliverySettings
	Profiles int
	// Days of order history ending the day before Until.
	Days         int
	OrdersPerDay int
	Until        time.Time
}

// BuildSeed assembles the menu with one combo per burger, the coupons and,
// when asked for, customers and their order history.
func BuildSeed(opts SeedOptions) Seed {
	products := &ProductFactory{TenantID: opts.TenantID}
	menu := products.CreateMenu()

	var side *models.Product
	for _, p := range menu {
		if p.Category == "Acompanhamentos" {
			side = p
			break
		}
	}
	var combos []*models.Product
	for _, p := range menu {
		if p.Category == "Lanches" && side != nil {
			combos = append(combos, products.CreateCombo(p, side, menu))
		}
	}

	seed := Seed{
		Products:     append(combos, menu...),
		OptionGroups: products.CreateOptionGroups(),
		Coupons:      (&CouponFactory{TenantID: opts.TenantID}).CreateCoupons(),
	}

	profiles := &ProfileFactory{TenantID: opts.TenantID, Origin: opts.Origin, RadiusKm: opts.RadiusKm}
	for i := 0; i < opts.Profiles; i++ {
		seed.Profiles = append(seed.Profiles, profiles.CreateProfile())
	}
	if len(seed.Profiles) == 0 || opts.Days <= 0 {
		return seed
	}

	orders := &OrderFactory{TenantID: opts.TenantID, Delivery: opts.Delivery}
	start := opts.Until.AddDate(0, 0, -opts.Days)
	for day := 0; day < opts.Days; day++ {
		date := start.AddDate(0, 0, day)
		for i := 0; i < opts.OrdersPerDay; i++ {
			profile := seed.Profiles[fake.IntBetween(0, len(seed.Profiles)-1)]
			profile.HasOrdered = true
			seed.Orders = append(seed.Orders, orders.CreateOrder(profile, menu, date))
		}
	}
	return seed
}
