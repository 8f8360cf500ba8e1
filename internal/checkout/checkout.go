// Package checkout validates a session and turns its cart into a submitted
// order.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/chrisdamba/menuflow/internal/catalog"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/pricing"
	"github.com/chrisdamba/menuflow/internal/repositories"
	"github.com/lucsky/cuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Reason string

const (
	RejectClosed           Reason = "REJECT_CLOSED"
	RejectMissingProfile   Reason = "REJECT_MISSING_PROFILE"
	RejectNoPayment        Reason = "REJECT_NO_PAYMENT"
	RejectInvalidMode      Reason = "REJECT_INVALID_MODE"
	RejectNoAddress        Reason = "REJECT_NO_ADDRESS"
	RejectEmptyCart        Reason = "REJECT_EMPTY_CART"
	RejectInsufficientCash Reason = "REJECT_INSUFFICIENT_CASH"
)

// RejectionError reports the first failed precondition of a submission.
type RejectionError struct {
	Reason Reason
}

func (e *RejectionError) Error() string {
	return "order rejected: " + string(e.Reason)
}

func reject(r Reason) error {
	return &RejectionError{Reason: r}
}

// ReasonOf returns the rejection reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

type Request struct {
	SessionID string
	Customer  models.Customer
	Mode      models.OrderType
	Payment   models.PaymentMethod
	// CashTendered is the note the customer pays with. Nil means the exact
	// amount.
	CashTendered *decimal.Decimal
	Address      *models.Address
	Items        []models.CartItem
	Coupon       *models.Coupon
	ScheduledTo  *time.Time
}

type Pipeline struct {
	tenantID string
	channel  string
	lookup   catalog.Lookup
	schedule models.ScheduleSettings
	pricing  *pricing.Calculator
	orders   repositories.OrderRepository
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

func NewPipeline(tenantID, channel string, lookup catalog.Lookup, schedule models.ScheduleSettings, calc *pricing.Calculator, orders repositories.OrderRepository, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		tenantID: tenantID,
		channel:  channel,
		lookup:   lookup,
		schedule: schedule,
		pricing:  calc,
		orders:   orders,
		log:      log,
		now:      time.Now,
		newID:    cuid.New,
	}
}

// Validate checks the preconditions that do not depend on prices, in order.
func (p *Pipeline) Validate(req Request) error {
	openAt := p.now()
	if req.ScheduledTo != nil && req.ScheduledTo.After(openAt) {
		openAt = *req.ScheduledTo
	}
	if !p.schedule.IsOpen(openAt) {
		return reject(RejectClosed)
	}
	if strings.TrimSpace(req.Customer.Name) == "" || strings.TrimSpace(req.Customer.Phone) == "" {
		return reject(RejectMissingProfile)
	}
	if !req.Payment.IsValid() {
		return reject(RejectNoPayment)
	}
	if !req.Mode.IsValid() {
		return reject(RejectInvalidMode)
	}
	if req.Mode == models.OrderTypeDelivery && req.Address.IsEmpty() {
		return reject(RejectNoAddress)
	}
	if len(req.Items) == 0 {
		return reject(RejectEmptyCart)
	}
	return nil
}

// Build validates req and prices it into a new order without storing it.
func (p *Pipeline) Build(ctx context.Context, req Request) (*models.Order, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	items, subtotal, cost := p.resolveItems(req.Items)
	var destination *models.Address
	if req.Mode == models.OrderTypeDelivery {
		destination = req.Address
	}
	quote := p.pricing.Quote(ctx, pricing.Input{
		CartTotal:   subtotal,
		Coupon:      req.Coupon,
		Mode:        req.Mode,
		Destination: destination,
	})

	tendered := quote.Total
	if req.CashTendered != nil {
		tendered = *req.CashTendered
	}
	change, err := pricing.Change(req.Payment, tendered, quote.Total)
	if errors.Is(err, pricing.ErrInsufficientCash) {
		return nil, reject(RejectInsufficientCash)
	}
	if err != nil {
		return nil, err
	}

	now := p.now()
	order := &models.Order{
		ID:            p.newID(),
		TenantID:      p.tenantID,
		Customer:      models.Customer{Name: strings.TrimSpace(req.Customer.Name), Phone: strings.TrimSpace(req.Customer.Phone)},
		Items:         items,
		Subtotal:      subtotal,
		Total:         quote.Total,
		Cost:          cost,
		Status:        models.OrderStatusPending,
		Type:          req.Mode,
		Origin:        p.channel,
		Payments:      []models.Payment{{Method: req.Payment, Amount: quote.Total}},
		ScheduledTo:   req.ScheduledTo,
		DiscountTotal: quote.Discount,
		DeliveryFee:   quote.DeliveryFee,
		Change:        change,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Coupon != nil && quote.Discount.IsPositive() {
		order.CouponCode = req.Coupon.Code
	}
	if destination != nil {
		addr := *destination
		order.DeliveryAddress = &addr
		order.Location = addr.Location
	}
	return order, nil
}

// Submit builds the order and stores it. Nothing is written when a
// precondition fails.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*models.Order, error) {
	order, err := p.Build(ctx, req)
	if err != nil {
		if reason, ok := ReasonOf(err); ok {
			p.log.WithFields(logrus.Fields{"session_id": req.SessionID, "reason": reason}).Info("order rejected")
		}
		return nil, err
	}
	if err := p.orders.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "submit order")
	}
	p.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"session_id": req.SessionID,
		"total":      order.Total.String(),
		"type":       order.Type,
	}).Info("order submitted")
	return order, nil
}

// resolveItems prices every line from the current catalog, falling back to
// the cart snapshot for products that left the catalog.
func (p *Pipeline) resolveItems(lines []models.CartItem) ([]models.OrderItem, decimal.Decimal, decimal.Decimal) {
	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	cost := decimal.Zero
	for _, line := range lines {
		product := line.Product
		if current, ok := p.lookup.Product(product.ID); ok {
			product = current
		}
		resolved := catalog.ResolveChannel(product, p.channel)
		base := resolved.EffectivePrice()
		unit := base.Add(line.OptionsTotal())
		qty := decimal.NewFromInt(int64(line.Quantity))

		items = append(items, models.OrderItem{
			ProductID:       product.ID,
			Name:            resolved.DisplayName,
			Quantity:        line.Quantity,
			BasePrice:       base,
			Price:           unit,
			Notes:           line.Notes,
			SelectedOptions: line.SelectedOptions,
			ComboChoices:    line.ComboChoices,
		})
		subtotal = subtotal.Add(unit.Mul(qty))
		cost = cost.Add(product.Cost.Mul(qty))
	}
	return items, subtotal, cost
}
