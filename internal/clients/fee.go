package clients

import (
	"context"
	"net/http"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type feeRequest struct {
	Origin      models.Location `json:"origin"`
	Destination models.Address  `json:"destination"`
	BaseFee     decimal.Decimal `json:"baseFee"`
	PricePerKm  decimal.Decimal `json:"pricePerKm"`
	MaxRadiusKm float64         `json:"maxRadiusKm"`
}

type feeResponse struct {
	Fee        *decimal.Decimal `json:"fee"`
	DistanceKm float64          `json:"distanceKm"`
}

// FeeClient asks the delivery-fee service for the fee to a destination.
type FeeClient struct {
	client *jsonClient
}

func NewFeeClient(baseURL string, httpClient *http.Client) *FeeClient {
	return &FeeClient{client: newJSONClient(baseURL, httpClient)}
}

func (c *FeeClient) CalculateFee(ctx context.Context, origin models.Location, destination models.Address, settings models.DeliverySettings) (decimal.Decimal, error) {
	var resp feeResponse
	err := c.client.post(ctx, "/v1/delivery-fee", feeRequest{
		Origin:      origin,
		Destination: destination,
		BaseFee:     settings.BaseFee,
		PricePerKm:  settings.PricePerKm,
		MaxRadiusKm: settings.MaxRadiusKm,
	}, &resp)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.Fee == nil {
		return decimal.Zero, errors.New("delivery fee missing from response")
	}
	return *resp.Fee, nil
}
