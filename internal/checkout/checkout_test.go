package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/pricing"
	"github.com/chrisdamba/menuflow/internal/repositories/docstore"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookup map[string]models.Product

func (l lookup) Product(id string) (models.Product, bool) {
	p, ok := l[id]
	return p, ok
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// 2024-01-01 is a Monday.
var monday = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	pipeline *Pipeline
	orders   *docstore.OrderRepository
	products lookup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	orders := docstore.NewOrderRepository(store.NewMemory(log), "t1", log)
	products := lookup{
		"a": {ID: "a", Name: "Burger", Price: dec("40"), Cost: dec("15"), IsAvailable: true},
		"b": {ID: "b", Name: "Soda", Price: dec("10"), Cost: dec("3"), IsAvailable: true},
	}
	delivery := models.DefaultDeliverySettings()
	delivery.BaseFee = dec("8")
	schedule := models.ScheduleSettings{
		Version:  models.ScheduleSettingsVersion,
		Timezone: "UTC",
		Days:     []models.DaySchedule{{Weekday: "monday", Open: "11:00", Close: "23:00"}},
	}
	calc := pricing.NewCalculator(delivery, models.Location{}, nil, log)
	p := NewPipeline("t1", models.ChannelDigitalMenu, products, schedule, calc, orders, log)
	p.now = func() time.Time { return monday }
	return &fixture{pipeline: p, orders: orders, products: products}
}

func (f *fixture) request() Request {
	return Request{
		SessionID: "s1",
		Customer:  models.Customer{Name: "Ana", Phone: "+55 11 99999-0000"},
		Mode:      models.OrderTypeTakeout,
		Payment:   models.PaymentPix,
		Items: []models.CartItem{
			{Product: f.products["a"], Quantity: 1},
			{Product: f.products["b"], Quantity: 2},
		},
	}
}

func TestPreconditionsInOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request, *fixture)
		want   Reason
	}{
		{"closed beats everything", func(r *Request, f *fixture) {
			f.pipeline.now = func() time.Time { return monday.Add(-3 * time.Hour) }
			r.Customer = models.Customer{}
			r.Payment = ""
		}, RejectClosed},
		{"missing profile", func(r *Request, _ *fixture) {
			r.Customer.Phone = " "
			r.Payment = ""
		}, RejectMissingProfile},
		{"no payment", func(r *Request, _ *fixture) {
			r.Payment = ""
			r.Mode = models.OrderTypeDelivery
		}, RejectNoPayment},
		{"unknown payment method", func(r *Request, _ *fixture) {
			r.Payment = "BITCOIN"
			r.Mode = "SPACESHIP"
		}, RejectNoPayment},
		{"unknown order type", func(r *Request, _ *fixture) {
			r.Mode = "SPACESHIP"
			r.Items = nil
		}, RejectInvalidMode},
		{"no address for delivery", func(r *Request, _ *fixture) {
			r.Mode = models.OrderTypeDelivery
			r.Items = nil
		}, RejectNoAddress},
		{"empty cart", func(r *Request, _ *fixture) {
			r.Items = nil
		}, RejectEmptyCart},
		{"insufficient cash", func(r *Request, _ *fixture) {
			r.Payment = models.PaymentCash
			tendered := dec("50")
			r.CashTendered = &tendered
		}, RejectInsufficientCash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			tt.mutate(&req, f)

			order, err := f.pipeline.Submit(context.Background(), req)
			assert.Nil(t, order)
			reason, ok := ReasonOf(err)
			require.True(t, ok, "error %v", err)
			assert.Equal(t, tt.want, reason)

			all, err := f.orders.GetAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all, "rejected submissions write nothing")
		})
	}
}

func TestTakeoutWithoutAddressIsAccepted(t *testing.T) {
	f := newFixture(t)
	order, err := f.pipeline.Submit(context.Background(), f.request())
	require.NoError(t, err)
	assert.Nil(t, order.DeliveryAddress)
	assert.True(t, order.DeliveryFee.IsZero())
}

func TestSubmitBuildsOrder(t *testing.T) {
	f := newFixture(t)
	f.pipeline.newID = func() string { return "ckorder1" }

	req := f.request()
	req.Mode = models.OrderTypeDelivery
	req.Address = &models.Address{Street: "Rua A", Number: "10", Location: &models.Location{Lat: -23.5, Lon: -46.6}}
	req.Coupon = &models.Coupon{Code: "OFF15", Type: models.CouponFixed, Value: dec("15"), MinOrderValue: dec("50")}
	req.Payment = models.PaymentCash
	tendered := dec("100")
	req.CashTendered = &tendered

	order, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "ckorder1", order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.ChannelDigitalMenu, order.Origin)
	assert.True(t, order.Subtotal.Equal(dec("60")))
	assert.True(t, order.DiscountTotal.Equal(dec("15")))
	assert.True(t, order.DeliveryFee.Equal(dec("8")))
	assert.True(t, order.Total.Equal(dec("53")))
	assert.True(t, order.Cost.Equal(dec("21")))
	require.NotNil(t, order.Change)
	assert.True(t, order.Change.Equal(dec("47")))
	assert.Equal(t, "OFF15", order.CouponCode)
	require.NotNil(t, order.Location)
	assert.Equal(t, -23.5, order.Location.Lat)
	require.Len(t, order.Payments, 1)
	assert.True(t, order.Payments[0].Amount.Equal(dec("53")))

	stored, err := f.orders.GetByID(context.Background(), "ckorder1")
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(dec("53")))
	require.Len(t, stored.Items, 2)
	assert.Equal(t, 2, stored.Items[1].Quantity)
}

func TestItemPricesAreResolvedAtSubmission(t *testing.T) {
	f := newFixture(t)
	req := f.request()

	// Price changes after the items went into the cart.
	soda := f.products["b"]
	soda.PromotionalPrice = dec("7.5")
	f.products["b"] = soda
	req.Items[0].SelectedOptions = []models.SelectedOption{{GroupTitle: "Extras", OptionName: "Bacon", Price: dec("4")}}

	order, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, order.Items[0].BasePrice.Equal(dec("40")))
	assert.True(t, order.Items[0].Price.Equal(dec("44")))
	assert.True(t, order.Items[1].Price.Equal(dec("7.5")))
	assert.True(t, order.Subtotal.Equal(dec("59")))
}

func TestExactCashHasNoChange(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Payment = models.PaymentCash

	order, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, order.Change)

	exact := dec("60")
	req.CashTendered = &exact
	order, err = f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, order.Change)
}

func TestScheduledOrderUsesScheduledTimeForOpeningHours(t *testing.T) {
	f := newFixture(t)
	f.pipeline.now = func() time.Time { return monday.Add(-4 * time.Hour) }
	req := f.request()
	at := monday.Add(time.Hour)
	req.ScheduledTo = &at

	order, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, order.ScheduledTo)
}
