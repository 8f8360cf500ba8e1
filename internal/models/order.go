package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID       string           `json:"productId"`
	Name            string           `json:"name"`
	Quantity        int              `json:"qty"`
	BasePrice       decimal.Decimal  `json:"basePrice"`
	Price           decimal.Decimal  `json:"price"` // unit price including options
	Notes           string           `json:"notes,omitempty"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty"`
	ComboChoices    []ComboChoice    `json:"comboChoices,omitempty"`
}

type Payment struct {
	Method PaymentMethod   `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Feedback struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Order struct {
	ID              string           `json:"id"`
	TenantID        string           `json:"tenantId"`
	Customer        Customer         `json:"customer"`
	Items           []OrderItem      `json:"items"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	Total           decimal.Decimal  `json:"total"`
	Cost            decimal.Decimal  `json:"cost"`
	Status          OrderStatus      `json:"status"`
	Type            OrderType        `json:"type"`
	Origin          string           `json:"origin"`
	Payments        []Payment        `json:"payments"`
	DeliveryAddress *Address         `json:"deliveryAddress,omitempty"`
	Location        *Location        `json:"location,omitempty"`
	ScheduledTo     *time.Time       `json:"scheduledTo,omitempty"`
	DiscountTotal   decimal.Decimal  `json:"discountTotal"`
	DeliveryFee     decimal.Decimal  `json:"deliveryFee"`
	CouponCode      string           `json:"couponCode,omitempty"`
	Change          *decimal.Decimal `json:"change,omitempty"`
	Feedback        *Feedback        `json:"feedback,omitempty"`
	PrintedAt       *time.Time       `json:"printedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type CustomerProfile struct {
	DeviceID   string   `json:"deviceId"`
	TenantID   string   `json:"tenantId"`
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Address    *Address `json:"address,omitempty"`
	HasOrdered bool     `json:"hasOrdered"`
}
