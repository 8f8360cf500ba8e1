package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/menuflow/internal/catalog"
	"github.com/chrisdamba/menuflow/internal/checkout"
	"github.com/chrisdamba/menuflow/internal/events"
	"github.com/chrisdamba/menuflow/internal/lifecycle"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/pricing"
	"github.com/chrisdamba/menuflow/internal/repositories/docstore"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/chrisdamba/menuflow/internal/upsell"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType())
	}
	return out
}

type fixture struct {
	manager  *Manager
	store    store.Store
	coupons  *docstore.CouponRepository
	profiles *docstore.ProfileRepository
	orders   *docstore.OrderRepository
	carts    *docstore.CartRepository
	catalog  *catalog.Catalog
	events   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	s := store.NewMemory(log)
	f := &fixture{
		store:    s,
		coupons:  docstore.NewCouponRepository(s, "t1"),
		profiles: docstore.NewProfileRepository(s, "t1"),
		orders:   docstore.NewOrderRepository(s, "t1", log),
		carts:    docstore.NewCartRepository(s, "t1"),
		catalog:  catalog.New(models.ChannelDigitalMenu, log),
		events:   &recorder{},
	}
	f.catalog.SetProducts([]models.Product{
		{ID: "burger", Name: "X-Burger", Category: "Lanches", Price: dec("20"), IsAvailable: true},
		{ID: "coke", Name: "Coca-Cola", Category: "Bebidas", Price: dec("6"), IsAvailable: true},
		{ID: "fries", Name: "Batata Frita", Category: "Acompanhamentos", Price: dec("12"), IsAvailable: true},
	})
	ctx := context.Background()
	require.NoError(t, f.coupons.BulkCreate(ctx, []*models.Coupon{
		{Code: "WELCOME", Type: models.CouponPercentage, Value: dec("10"), IsActive: true, IsNewCustomerOnly: true},
		{Code: "OFF5", Type: models.CouponFixed, Value: dec("5"), IsActive: true},
		{Code: "OLD", Type: models.CouponFixed, Value: dec("5"), IsActive: false},
	}))

	delivery := models.DefaultDeliverySettings()
	calc := pricing.NewCalculator(delivery, models.Location{}, nil, log)
	pipeline := checkout.NewPipeline("t1", models.ChannelDigitalMenu, f.catalog, models.DefaultScheduleSettings(), calc, f.orders, log)

	f.manager = NewManager(Deps{
		TenantID:  "t1",
		Catalog:   f.catalog,
		Pricing:   calc,
		Pipeline:  pipeline,
		Upsell:    upsell.NewEngine(models.DefaultUpsellSettings(), nil, log),
		Coupons:   f.coupons,
		Carts:     f.carts,
		Profiles:  f.profiles,
		Tracker:   lifecycle.NewTracker(f.orders, nil, log),
		Publisher: f.events,
		Loyalty:   models.DefaultLoyaltySettings(),
		Log:       log,
	})
	t.Cleanup(f.manager.Close)
	return f
}

func (f *fixture) item(id string, qty int) models.CartItem {
	p, _ := f.catalog.Product(id)
	return models.CartItem{Product: p, Quantity: qty}
}

func TestAddItemSuggestsDrinkForSnack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)

	suggestion, err := s.AddItem(ctx, f.item("burger", 1))
	require.NoError(t, err)
	require.NotNil(t, suggestion)
	assert.Equal(t, "coke", suggestion.Product.ID)
	assert.Equal(t, "drink_for_snack", suggestion.Strategy)
	assert.Equal(t, 1, s.Cart().Count())

	assert.Equal(t, []string{events.TypeItemAdded, events.TypeCartUpdated, events.TypeUpsellSuggested}, f.events.types())
}

func TestAddItemWithoutSuggestionStillAdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)

	_, err = s.AddItem(ctx, f.item("coke", 1))
	require.NoError(t, err)
	_, err = s.AddItem(ctx, f.item("fries", 1))
	require.NoError(t, err)

	suggestion, err := s.AddItem(ctx, f.item("coke", 1))
	require.NoError(t, err)
	assert.Nil(t, suggestion, "cart already has a side")
	assert.Len(t, s.Cart().Items(), 3, "duplicate adds are separate lines")

	_, err = s.AddItem(ctx, f.item("coke", 0))
	assert.Error(t, err)
}

func TestCartIsRestoredForSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)
	_, err = s.AddItem(ctx, f.item("burger", 2))
	require.NoError(t, err)
	_, err = s.ApplyCoupon(ctx, "off5")
	require.NoError(t, err)
	require.NoError(t, s.UpdateQuantity(ctx, 0, 1))

	saved, err := f.carts.Load(ctx, "dev1")
	require.NoError(t, err)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, 3, saved.Items[0].Quantity)
	assert.Equal(t, "OFF5", saved.CouponCode)

	log, _ := logtest.NewNullLogger()
	other := NewManager(Deps{
		TenantID: "t1",
		Catalog:  f.catalog,
		Coupons:  f.coupons,
		Carts:    f.carts,
		Profiles: f.profiles,
		Log:      log,
	})
	restored, err := other.Get(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Cart().Count())
	require.NotNil(t, restored.Coupon())
	assert.Equal(t, "OFF5", restored.Coupon().Code)
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)

	_, err = s.ApplyCoupon(ctx, "nope")
	assert.ErrorIs(t, err, ErrCouponNotFound)
	_, err = s.ApplyCoupon(ctx, "OLD")
	assert.ErrorIs(t, err, ErrCouponInactive)

	coupon, err := s.ApplyCoupon(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", coupon.Code)

	require.NoError(t, f.profiles.MarkOrdered(ctx, "dev1"))
	_, err = s.ApplyCoupon(ctx, "WELCOME")
	assert.ErrorIs(t, err, ErrCouponNewCustomerOnly)
	assert.Equal(t, "WELCOME", s.Coupon().Code, "failed apply keeps the current coupon")

	s.RemoveCoupon(ctx)
	assert.Nil(t, s.Coupon())
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)

	_, err = s.AddItem(ctx, f.item("burger", 2))
	require.NoError(t, err)
	_, err = s.ApplyCoupon(ctx, "OFF5")
	require.NoError(t, err)
	s.SetMode(models.OrderTypeTakeout)

	q := s.Quote(ctx)
	assert.True(t, q.Subtotal.Equal(dec("40")))
	assert.True(t, q.Discount.Equal(dec("5")))
	assert.True(t, q.DeliveryFee.IsZero())
	assert.True(t, q.Total.Equal(dec("35")))
}

func TestPlaceOrderRejectedLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)
	_, err = s.AddItem(ctx, f.item("burger", 1))
	require.NoError(t, err)
	_, err = s.ApplyCoupon(ctx, "OFF5")
	require.NoError(t, err)

	order, err := s.PlaceOrder(ctx)
	assert.Nil(t, order)
	reason, ok := checkout.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, checkout.RejectMissingProfile, reason)

	assert.Equal(t, 1, s.Cart().Count())
	assert.NotNil(t, s.Coupon())
	assert.Contains(t, f.events.types(), events.TypeOrderRejected)

	all, err := f.orders.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPlaceOrderSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)

	_, err = s.AddItem(ctx, f.item("burger", 2))
	require.NoError(t, err)
	_, err = s.ApplyCoupon(ctx, "WELCOME")
	require.NoError(t, err)
	require.NoError(t, s.SetCustomer(ctx, " Ana ", "11999990000"))
	s.SetMode(models.OrderTypeDelivery)
	s.SetAddress(&models.Address{Street: "Rua A", Number: "1"})
	tendered := dec("50")
	s.SetPayment(models.PaymentCash, &tendered)

	order, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "Ana", order.Customer.Name)
	assert.True(t, order.Subtotal.Equal(dec("40")))
	assert.True(t, order.DiscountTotal.Equal(dec("4")))
	assert.True(t, order.DeliveryFee.Equal(dec("5")))
	assert.True(t, order.Total.Equal(dec("41")))
	require.NotNil(t, order.Change)
	assert.True(t, order.Change.Equal(dec("9")))
	assert.Equal(t, "WELCOME", order.CouponCode)

	assert.True(t, s.Cart().IsEmpty())
	assert.Nil(t, s.Coupon())
	assert.Contains(t, f.events.types(), events.TypeOrderPlaced)

	profile, err := f.profiles.Get(ctx, "dev1")
	require.NoError(t, err)
	assert.True(t, profile.HasOrdered)
	assert.Equal(t, "Ana", profile.Name)

	saved, err := f.carts.Load(ctx, "dev1")
	require.NoError(t, err)
	assert.Empty(t, saved.Items)
	assert.Empty(t, saved.CouponCode)

	require.NotNil(t, s.TrackedOrder())
	assert.Equal(t, order.ID, s.TrackedOrder().ID)

	_, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusPreparing, time.Now())
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return s.TrackedOrder().Status == models.OrderStatusPreparing
	}, time.Second, 10*time.Millisecond)

	_, err = s.ApplyCoupon(ctx, "WELCOME")
	assert.ErrorIs(t, err, ErrCouponNewCustomerOnly, "second order is not a first order")
}

func TestConcurrentPlaceOrderSubmitsCartOnce(t *testing.T) {
	ctx := context.Background()
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		s, err := f.manager.Get(ctx, "dev1")
		require.NoError(t, err)
		_, err = s.AddItem(ctx, f.item("burger", 1))
		require.NoError(t, err)
		require.NoError(t, s.SetCustomer(ctx, "Ana", "11999990000"))
		s.SetMode(models.OrderTypeTakeout)
		s.SetPayment(models.PaymentPix, nil)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.PlaceOrder(ctx)
			}(i)
		}
		wg.Wait()

		var placed, empty int
		for _, err := range errs {
			if err == nil {
				placed++
				continue
			}
			if reason, ok := checkout.ReasonOf(err); ok && reason == checkout.RejectEmptyCart {
				empty++
			}
		}
		assert.Equal(t, 1, placed)
		assert.Equal(t, 1, empty)

		all, err := f.orders.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1, "one cart, one order")
	}
}

func TestPlaceOrderRejectsUnknownEnums(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Get(ctx, "dev1")
	require.NoError(t, err)
	_, err = s.AddItem(ctx, f.item("burger", 1))
	require.NoError(t, err)
	require.NoError(t, s.SetCustomer(ctx, "Ana", "11999990000"))
	s.SetMode("SPACESHIP")
	s.SetPayment(models.PaymentPix, nil)

	_, err = s.PlaceOrder(ctx)
	reason, ok := checkout.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, checkout.RejectInvalidMode, reason)

	s.SetMode(models.OrderTypeTakeout)
	s.SetPayment("BITCOIN", nil)
	_, err = s.PlaceOrder(ctx)
	reason, ok = checkout.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, checkout.RejectNoPayment, reason)
}
