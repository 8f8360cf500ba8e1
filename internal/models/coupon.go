package models

import "github.com/shopspring/decimal"

type Coupon struct {
	Code              string          `json:"code"`
	TenantID          string          `json:"tenantId"`
	Type              CouponType      `json:"type"`
	Value             decimal.Decimal `json:"value"`
	MinOrderValue     decimal.Decimal `json:"minOrderValue"`
	IsActive          bool            `json:"isActive"`
	IsNewCustomerOnly bool            `json:"isNewCustomerOnly"`
}
