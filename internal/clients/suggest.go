package clients

import (
	"context"
	"net/http"

	"github.com/chrisdamba/menuflow/internal/models"
)

type suggestProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type suggestRequest struct {
	Added     suggestProduct   `json:"added"`
	Available []suggestProduct `json:"available"`
}

type suggestResponse struct {
	ProductID string `json:"productId"`
}

// SuggestClient asks the AI upsell service for a product to offer.
type SuggestClient struct {
	client *jsonClient
}

func NewSuggestClient(baseURL string, httpClient *http.Client) *SuggestClient {
	return &SuggestClient{client: newJSONClient(baseURL, httpClient)}
}

// Suggest returns the id of the product to offer, or "" for none.
func (c *SuggestClient) Suggest(ctx context.Context, added models.Product, available []models.Product) (string, error) {
	req := suggestRequest{
		Added:     toSuggestProduct(added),
		Available: make([]suggestProduct, 0, len(available)),
	}
	for _, p := range available {
		req.Available = append(req.Available, toSuggestProduct(p))
	}
	var resp suggestResponse
	if err := c.client.post(ctx, "/v1/upsell", req, &resp); err != nil {
		return "", err
	}
	return resp.ProductID, nil
}

func toSuggestProduct(p models.Product) suggestProduct {
	return suggestProduct{ID: p.ID, Name: p.Name, Category: p.Category}
}
