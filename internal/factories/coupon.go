package factories

import (
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/shopspring/decimal"
)

type CouponFactory struct {
	TenantID string
}

func (cf *CouponFactory) CreateCoupons() []*models.Coupon {
	return []*models.Coupon{
		{
			Code:              "BEMVINDO",
			TenantID:          cf.TenantID,
			Type:              models.CouponPercentage,
			Value:             decimal.NewFromInt(10),
			IsActive:          true,
			IsNewCustomerOnly: true,
		},
		{
			Code:          "DESCONTO5",
			TenantID:      cf.TenantID,
			Type:          models.CouponFixed,
			Value:         decimal.NewFromInt(5),
			MinOrderValue: decimal.NewFromInt(30),
			IsActive:      true,
		},
		{
			Code:          "PIZZA20",
			TenantID:      cf.TenantID,
			Type:          models.CouponPercentage,
			Value:         decimal.NewFromInt(20),
			MinOrderValue: decimal.NewFromInt(80),
			IsActive:      false,
		},
	}
}
