// Package pricing turns a cart total into a final order total: coupon
// discount, delivery fee and cash change.
package pricing

import (
	"context"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrInsufficientCash = errors.New("tendered amount is below the order total")

var hundred = decimal.NewFromInt(100)

// FeeCalculator quotes a delivery fee for a destination.
type FeeCalculator interface {
	CalculateFee(ctx context.Context, origin models.Location, destination models.Address, settings models.DeliverySettings) (decimal.Decimal, error)
}

// Discount returns the coupon discount for cartTotal. A missing coupon or a
// total below the coupon minimum yields zero.
func Discount(coupon *models.Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	if coupon == nil || cartTotal.LessThan(coupon.MinOrderValue) {
		return decimal.Zero
	}
	switch coupon.Type {
	case models.CouponFixed:
		return coupon.Value
	case models.CouponPercentage:
		return cartTotal.Mul(coupon.Value).Div(hundred).Round(2)
	}
	return decimal.Zero
}

// Change is the amount to hand back for a cash payment. It is nil for any
// other method and when the exact amount is tendered.
func Change(method models.PaymentMethod, tendered, total decimal.Decimal) (*decimal.Decimal, error) {
	if method != models.PaymentCash {
		return nil, nil
	}
	if tendered.LessThan(total) {
		return nil, errors.Wrapf(ErrInsufficientCash, "tendered %s, total %s", tendered, total)
	}
	if tendered.Equal(total) {
		return nil, nil
	}
	change := tendered.Sub(total)
	return &change, nil
}

type Input struct {
	CartTotal   decimal.Decimal
	Coupon      *models.Coupon
	Mode        models.OrderType
	Destination *models.Address
}

type Quote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Total       decimal.Decimal `json:"total"`
}

type Calculator struct {
	settings models.DeliverySettings
	origin   models.Location
	fees     FeeCalculator
	log      logrus.FieldLogger
}

// NewCalculator builds a calculator. fees may be nil, in which case the
// static base fee is always used.
func NewCalculator(settings models.DeliverySettings, origin models.Location, fees FeeCalculator, log logrus.FieldLogger) *Calculator {
	return &Calculator{settings: settings, origin: origin, fees: fees, log: log}
}

// DeliveryFee is zero unless mode is DELIVERY and cartTotal is below the free
// shipping threshold. A zero threshold disables free shipping.
func (c *Calculator) DeliveryFee(ctx context.Context, mode models.OrderType, cartTotal decimal.Decimal, destination *models.Address) decimal.Decimal {
	if mode != models.OrderTypeDelivery {
		return decimal.Zero
	}
	threshold := c.settings.FreeShippingThreshold
	if threshold.IsPositive() && !cartTotal.LessThan(threshold) {
		return decimal.Zero
	}
	return c.resolveFee(ctx, destination)
}

func (c *Calculator) resolveFee(ctx context.Context, destination *models.Address) decimal.Decimal {
	if c.fees == nil || destination.IsEmpty() {
		return c.settings.BaseFee
	}

	ctx, cancel := context.WithTimeout(ctx, c.settings.FeeLookupTimeout)
	defer cancel()

	fee, err := c.fees.CalculateFee(ctx, c.origin, *destination, c.settings)
	if err != nil {
		c.log.WithError(err).WithField("base_fee", c.settings.BaseFee.String()).
			Warn("delivery fee lookup failed, using base fee")
		return c.settings.BaseFee
	}
	if fee.IsNegative() {
		c.log.WithField("fee", fee.String()).Warn("delivery fee service returned a negative fee, using base fee")
		return c.settings.BaseFee
	}
	return fee
}

// Quote computes max(0, cartTotal - discount) + deliveryFee.
func (c *Calculator) Quote(ctx context.Context, in Input) Quote {
	discount := Discount(in.Coupon, in.CartTotal)
	afterDiscount := decimal.Max(decimal.Zero, in.CartTotal.Sub(discount))
	fee := c.DeliveryFee(ctx, in.Mode, in.CartTotal, in.Destination)
	return Quote{
		Subtotal:    in.CartTotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       afterDiscount.Add(fee),
	}
}
