package factories

import (
	"github.com/chrisdamba/menuflow/internal/models"
)

type ProfileFactory struct {
	TenantID string
	Origin   models.Location
	RadiusKm float64
}

func (pf *ProfileFactory) CreateProfile() *models.CustomerProfile {
	loc := nearby(pf.Origin, pf.RadiusKm)
	return &models.CustomerProfile{
		DeviceID: fake.UUID().V4(),
		TenantID: pf.TenantID,
		Name:     fake.Person().Name(),
		Phone:    fake.Phone().Number(),
		Address: &models.Address{
			Street:       fake.Address().StreetName(),
			Number:       fake.Address().BuildingNumber(),
			Neighborhood: fake.Address().City(),
			City:         fake.Address().City(),
			Postcode:     fake.Address().PostCode(),
			Location:     &loc,
		},
	}
}
