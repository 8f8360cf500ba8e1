package models

import "github.com/shopspring/decimal"

// ChannelConfig is the per-channel view of a product. It is used both for the
// overrides stored on a product and for the resolved result.
type ChannelConfig struct {
	Channel          string          `json:"channel" mapstructure:"channel"`
	Price            decimal.Decimal `json:"price"`
	PromotionalPrice decimal.Decimal `json:"promotionalPrice"`
	IsAvailable      bool            `json:"isAvailable"`
	DisplayName      string          `json:"displayName,omitempty"`
	Description      string          `json:"description,omitempty"`
	Image            string          `json:"image,omitempty"`
	Category         string          `json:"category,omitempty"`
	SortOrder        int             `json:"sortOrder"`
}

// EffectivePrice is the promotional price when it is set and positive,
// otherwise the regular price.
func (c ChannelConfig) EffectivePrice() decimal.Decimal {
	if c.PromotionalPrice.IsPositive() {
		return c.PromotionalPrice
	}
	return c.Price
}

type ComboItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type ComboStepItem struct {
	ProductID  string          `json:"productId"`
	ExtraPrice decimal.Decimal `json:"extraPrice"`
}

type ComboStep struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Min   int             `json:"min"`
	Max   int             `json:"max"`
	Items []ComboStepItem `json:"items"`
}

type Product struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenantId"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Image            string          `json:"image,omitempty"`
	Category         string          `json:"category"`
	Type             ProductType     `json:"type"`
	Price            decimal.Decimal `json:"price"`
	PromotionalPrice decimal.Decimal `json:"promotionalPrice"`
	Cost             decimal.Decimal `json:"cost"`
	IsAvailable      bool            `json:"isAvailable"`
	SortOrder        int             `json:"sortOrder"`
	Channels         []ChannelConfig `json:"channels,omitempty"`
	ComboItems       []ComboItem     `json:"comboItems,omitempty"`
	ComboSteps       []ComboStep     `json:"comboSteps,omitempty"`
	OptionGroupIDs   []string        `json:"optionGroupIds,omitempty"`
}

func (p Product) IsCombo() bool {
	return p.Type == ProductTypeCombo
}
