package factories

import (
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/lucsky/cuid"
	"github.com/shopspring/decimal"
)

// Hours customers usually order at, weekends run later.
var (
	weekdayHours = []int{12, 13, 19, 20}
	weekendHours = []int{13, 14, 19, 20, 21, 22, 23}
)

type OrderFactory struct {
	TenantID string
	Delivery models.DeliverySettings
}

// CreateOrder builds a finished order placed by profile on day, picking one
// to four lines from products.
func (of *OrderFactory) CreateOrder(profile *models.CustomerProfile, products []*models.Product, day time.Time) *models.Order {
	at := of.orderTime(day)
	lines := fake.IntBetween(1, 4)
	items := make([]models.OrderItem, 0, lines)
	subtotal := decimal.Zero
	cost := decimal.Zero
	for i := 0; i < lines; i++ {
		p := products[fake.IntBetween(0, len(products)-1)]
		qty := fake.IntBetween(1, 3)
		unit := p.Price
		if p.PromotionalPrice.IsPositive() {
			unit = p.PromotionalPrice
		}
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			BasePrice: unit,
			Price:     unit,
		})
		q := decimal.NewFromInt(int64(qty))
		subtotal = subtotal.Add(unit.Mul(q))
		cost = cost.Add(p.Cost.Mul(q))
	}

	orderType := models.OrderType(fake.RandomStringElement([]string{
		string(models.OrderTypeDelivery), string(models.OrderTypeDelivery), string(models.OrderTypeTakeout), string(models.OrderTypeDineIn),
	}))
	fee := decimal.Zero
	if orderType == models.OrderTypeDelivery {
		fee = of.Delivery.BaseFee
	}
	total := subtotal.Add(fee)
	method := models.PaymentMethod(fake.RandomStringElement([]string{
		string(models.PaymentPix), string(models.PaymentCreditCard), string(models.PaymentDebitCard), string(models.PaymentCash),
	}))

	order := &models.Order{
		ID:            cuid.New(),
		TenantID:      of.TenantID,
		Customer:      models.Customer{Name: profile.Name, Phone: profile.Phone},
		Items:         items,
		Subtotal:      subtotal,
		Total:         total,
		Cost:          cost,
		Status:        models.OrderStatusCompleted,
		Type:          orderType,
		Origin:        models.ChannelDigitalMenu,
		Payments:      []models.Payment{{Method: method, Amount: total}},
		DiscountTotal: decimal.Zero,
		DeliveryFee:   fee,
		CreatedAt:     at,
		UpdatedAt:     at.Add(time.Duration(fake.IntBetween(20, 70)) * time.Minute),
	}
	if orderType == models.OrderTypeDelivery && profile.Address != nil {
		addr := *profile.Address
		order.DeliveryAddress = &addr
		order.Location = addr.Location
	}
	if fake.IntBetween(1, 12) == 1 {
		order.Status = models.OrderStatusCancelled
		return order
	}
	if fake.IntBetween(1, 3) == 1 {
		order.Feedback = &models.Feedback{
			Rating:    of.rating(),
			Comment:   fake.Lorem().Sentence(6),
			CreatedAt: order.UpdatedAt.Add(time.Hour),
		}
	}
	return order
}

func (of *OrderFactory) orderTime(day time.Time) time.Time {
	hours := weekdayHours
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		hours = weekendHours
	}
	hour := hours[fake.IntBetween(0, len(hours)-1)]
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, fake.IntBetween(0, 59), fake.IntBetween(0, 59), 0, day.Location())
}

// rating skews towards good reviews.
func (of *OrderFactory) rating() int {
	r := fake.IntBetween(1, 100)
	switch {
	case r <= 5:
		return 1
	case r <= 10:
		return 2
	case r <= 25:
		return 3
	case r <= 55:
		return 4
	}
	return 5
}
