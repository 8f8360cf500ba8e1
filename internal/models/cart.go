package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SelectedOption struct {
	GroupTitle string          `json:"groupTitle"`
	OptionName string          `json:"optionName"`
	Price      decimal.Decimal `json:"price"`
}

type ComboChoice struct {
	StepName  string `json:"stepName"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type CartItem struct {
	LineID          string           `json:"lineId"`
	Product         Product          `json:"product"`
	Quantity        int              `json:"quantity"`
	Notes           string           `json:"notes,omitempty"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty"`
	ComboChoices    []ComboChoice    `json:"comboChoices,omitempty"`
}

// OptionsTotal is the sum of the selected option prices for one unit.
func (c CartItem) OptionsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, o := range c.SelectedOptions {
		total = total.Add(o.Price)
	}
	return total
}

// SavedCart is the persisted state of a session cart. It is always written
// whole.
type SavedCart struct {
	SessionID  string     `json:"sessionId"`
	TenantID   string     `json:"tenantId"`
	Items      []CartItem `json:"items"`
	CouponCode string     `json:"couponCode"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
