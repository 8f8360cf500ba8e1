// Package session holds the state of one customer ordering session: the
// cart, the applied coupon and the checkout choices. Commands come in as
// method calls and every visible change goes out as an event.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chrisdamba/menuflow/internal/cart"
	"github.com/chrisdamba/menuflow/internal/catalog"
	"github.com/chrisdamba/menuflow/internal/checkout"
	"github.com/chrisdamba/menuflow/internal/events"
	"github.com/chrisdamba/menuflow/internal/lifecycle"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/pricing"
	"github.com/chrisdamba/menuflow/internal/repositories"
	"github.com/chrisdamba/menuflow/internal/upsell"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrCouponInactive        = errors.New("coupon is not active")
	ErrCouponNewCustomerOnly = errors.New("coupon is only valid on a first order")
)

// Deps are the collaborators shared by every session of a store.
type Deps struct {
	TenantID  string
	Catalog   *catalog.Catalog
	Pricing   *pricing.Calculator
	Pipeline  *checkout.Pipeline
	Upsell    *upsell.Engine
	Coupons   repositories.CouponRepository
	Carts     repositories.CartRepository
	Profiles  repositories.ProfileRepository
	Tracker   *lifecycle.Tracker
	Publisher events.Publisher
	Loyalty   models.LoyaltySettings
	Log       logrus.FieldLogger
}

type Session struct {
	id   string
	deps Deps
	cart *cart.Cart
	now  func() time.Time

	// placing serializes submissions so one cart yields at most one order.
	placing sync.Mutex

	mu          sync.Mutex
	coupon      *models.Coupon
	customer    models.Customer
	mode        models.OrderType
	payment     models.PaymentMethod
	tendered    *decimal.Decimal
	address     *models.Address
	scheduledTo *time.Time
	tracked     *models.Order
	stopTrack   context.CancelFunc
}

func newSession(id string, deps Deps) *Session {
	return &Session{
		id:   id,
		deps: deps,
		cart: cart.New(deps.Catalog.Channel(), deps.Catalog),
		now:  time.Now,
		mode: models.OrderTypeDelivery,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Cart() *cart.Cart {
	return s.cart
}

func (s *Session) log() logrus.FieldLogger {
	return s.deps.Log.WithField("session_id", s.id)
}

// AddItem always adds item to the cart and then asks the upsell chain for a
// complementary product. A nil suggestion is the normal case.
func (s *Session) AddItem(ctx context.Context, item models.CartItem) (*upsell.Suggestion, error) {
	added, err := s.cart.AddItem(item)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.ItemAddedEvent{
		BaseEvent: s.base(events.TypeItemAdded),
		ProductID: added.Product.ID,
		Quantity:  int32(added.Quantity),
		LineID:    added.LineID,
	})
	s.cartChanged(ctx)

	if s.deps.Upsell == nil {
		return nil, nil
	}
	suggestion := s.deps.Upsell.Suggest(ctx, upsell.Request{
		Added:     s.cart.CurrentProduct(added),
		Cart:      s.cart.Items(),
		Available: s.deps.Catalog.Available(),
	})
	if suggestion != nil {
		s.publish(ctx, events.UpsellSuggestedEvent{
			BaseEvent:          s.base(events.TypeUpsellSuggested),
			AddedProductID:     added.Product.ID,
			SuggestedProductID: suggestion.Product.ID,
			Strategy:           suggestion.Strategy,
		})
	}
	return suggestion, nil
}

func (s *Session) UpdateQuantity(ctx context.Context, index, delta int) error {
	if err := s.cart.UpdateQuantity(index, delta); err != nil {
		return err
	}
	if delta != 0 {
		s.cartChanged(ctx)
	}
	return nil
}

func (s *Session) RemoveItem(ctx context.Context, index int) error {
	if err := s.cart.RemoveItem(index); err != nil {
		return err
	}
	s.cartChanged(ctx)
	return nil
}

func (s *Session) ClearCart(ctx context.Context) {
	s.cart.Clear()
	s.cartChanged(ctx)
}

// ApplyCoupon looks code up and keeps it for the next quote and order. A
// coupon below its minimum order value is still accepted; it just yields no
// discount until the cart grows.
func (s *Session) ApplyCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.deps.Coupons.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "look up coupon %q", code)
	}
	if !coupon.IsActive {
		return nil, ErrCouponInactive
	}
	if coupon.IsNewCustomerOnly && s.deps.Loyalty.EnforceNewCustomerOnly {
		ordered, err := s.hasOrdered(ctx)
		if err != nil {
			return nil, err
		}
		if ordered {
			return nil, ErrCouponNewCustomerOnly
		}
	}

	s.mu.Lock()
	s.coupon = coupon
	s.mu.Unlock()

	s.publish(ctx, events.CouponAppliedEvent{BaseEvent: s.base(events.TypeCouponApplied), Code: coupon.Code})
	s.persist(ctx)
	return coupon, nil
}

func (s *Session) RemoveCoupon(ctx context.Context) {
	s.mu.Lock()
	removed := s.coupon
	s.coupon = nil
	s.mu.Unlock()
	if removed == nil {
		return
	}
	s.publish(ctx, events.CouponAppliedEvent{BaseEvent: s.base(events.TypeCouponApplied), Code: removed.Code, Removed: true})
	s.persist(ctx)
}

func (s *Session) Coupon() *models.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupon
}

func (s *Session) hasOrdered(ctx context.Context) (bool, error) {
	profile, err := s.deps.Profiles.Get(ctx, s.id)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "load profile")
	}
	return profile.HasOrdered, nil
}

// SetCustomer records the customer's name and phone and stores them on the
// device profile for the next visit.
func (s *Session) SetCustomer(ctx context.Context, name, phone string) error {
	customer := models.Customer{Name: strings.TrimSpace(name), Phone: strings.TrimSpace(phone)}
	s.mu.Lock()
	s.customer = customer
	address := s.address
	s.mu.Unlock()

	profile, err := s.deps.Profiles.Get(ctx, s.id)
	if errors.Is(err, repositories.ErrNotFound) {
		profile = &models.CustomerProfile{DeviceID: s.id}
	} else if err != nil {
		return errors.Wrap(err, "load profile")
	}
	profile.Name = customer.Name
	profile.Phone = customer.Phone
	if address != nil {
		profile.Address = address
	}
	return errors.Wrap(s.deps.Profiles.Save(ctx, profile), "save profile")
}

func (s *Session) SetMode(mode models.OrderType) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// SetPayment selects the payment method. tendered is only kept for cash;
// nil means the customer pays the exact amount.
func (s *Session) SetPayment(method models.PaymentMethod, tendered *decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payment = method
	s.tendered = nil
	if method == models.PaymentCash && tendered != nil {
		t := *tendered
		s.tendered = &t
	}
}

func (s *Session) SetAddress(address *models.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if address == nil {
		s.address = nil
		return
	}
	a := *address
	s.address = &a
}

// SetSchedule sets the time a scheduled order is wanted for. Nil means as
// soon as possible.
func (s *Session) SetSchedule(at *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at == nil {
		s.scheduledTo = nil
		return
	}
	t := *at
	s.scheduledTo = &t
}

// Quote prices the current cart with the applied coupon and chosen mode.
func (s *Session) Quote(ctx context.Context) pricing.Quote {
	s.mu.Lock()
	in := pricing.Input{
		CartTotal:   s.cart.Total(),
		Coupon:      s.coupon,
		Mode:        s.mode,
		Destination: s.address,
	}
	s.mu.Unlock()
	return s.deps.Pricing.Quote(ctx, in)
}

func (s *Session) request() checkout.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return checkout.Request{
		SessionID:    s.id,
		Customer:     s.customer,
		Mode:         s.mode,
		Payment:      s.payment,
		CashTendered: s.tendered,
		Address:      s.address,
		Items:        s.cart.Items(),
		Coupon:       s.coupon,
		ScheduledTo:  s.scheduledTo,
	}
}

// PlaceOrder submits the cart. On success the cart and coupon are cleared,
// the profile is marked as having ordered and the order is tracked live. On
// failure nothing in the session changes.
func (s *Session) PlaceOrder(ctx context.Context) (*models.Order, error) {
	s.placing.Lock()
	defer s.placing.Unlock()

	req := s.request()
	order, err := s.deps.Pipeline.Submit(ctx, req)
	if err != nil {
		if reason, ok := checkout.ReasonOf(err); ok {
			s.publish(ctx, events.OrderRejectedEvent{BaseEvent: s.base(events.TypeOrderRejected), Reason: string(reason)})
		}
		return nil, err
	}

	s.cart.Clear()
	s.mu.Lock()
	s.coupon = nil
	s.tendered = nil
	s.scheduledTo = nil
	s.mu.Unlock()
	s.persist(ctx)

	if err := s.deps.Profiles.MarkOrdered(ctx, s.id); err != nil {
		s.log().WithError(err).Warn("failed to mark profile as ordered")
	}
	s.track(order)
	s.publish(ctx, events.NewOrderPlaced(s.id, order))
	s.publish(ctx, events.NewCartUpdated(s.deps.TenantID, s.id, 0, decimal.Zero, s.now()))
	return order, nil
}

// track follows the latest order until the next order or Close. It runs on
// its own context so it outlives the request that placed the order.
func (s *Session) track(order *models.Order) {
	if s.deps.Tracker == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.stopTrack != nil {
		s.stopTrack()
	}
	s.stopTrack = cancel
	o := *order
	s.tracked = &o
	s.mu.Unlock()

	stream, err := s.deps.Tracker.Track(ctx, order.ID)
	if err != nil {
		s.log().WithError(err).Warn("failed to track order")
		return
	}
	go func() {
		for o := range stream {
			o := o
			s.mu.Lock()
			if s.tracked != nil && s.tracked.ID == o.ID {
				s.tracked = &o
			}
			s.mu.Unlock()
		}
	}()
}

// TrackedOrder is the last confirmed state of the most recent order placed in
// this session.
func (s *Session) TrackedOrder() *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracked == nil {
		return nil
	}
	o := *s.tracked
	return &o
}

// Close stops order tracking.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopTrack != nil {
		s.stopTrack()
		s.stopTrack = nil
	}
}

func (s *Session) cartChanged(ctx context.Context) {
	s.persist(ctx)
	s.publish(ctx, events.NewCartUpdated(s.deps.TenantID, s.id, s.cart.Count(), s.cart.Total(), s.now()))
}

// persist replaces the stored cart with the current one.
func (s *Session) persist(ctx context.Context) {
	if s.deps.Carts == nil {
		return
	}
	saved := &models.SavedCart{SessionID: s.id, Items: s.cart.Items(), UpdatedAt: s.now()}
	s.mu.Lock()
	if s.coupon != nil {
		saved.CouponCode = s.coupon.Code
	}
	s.mu.Unlock()
	if err := s.deps.Carts.Save(ctx, saved); err != nil {
		s.log().WithError(err).Warn("failed to save cart")
	}
}

// restore loads the saved cart and profile. A missing record is not an
// error.
func (s *Session) restore(ctx context.Context) error {
	if s.deps.Carts != nil {
		saved, err := s.deps.Carts.Load(ctx, s.id)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
		case err != nil:
			return errors.Wrap(err, "load cart")
		default:
			s.cart.Replace(saved.Items)
			if saved.CouponCode != "" {
				if coupon, err := s.deps.Coupons.GetByCode(ctx, saved.CouponCode); err == nil && coupon.IsActive {
					s.coupon = coupon
				}
			}
		}
	}

	profile, err := s.deps.Profiles.Get(ctx, s.id)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
	case err != nil:
		return errors.Wrap(err, "load profile")
	default:
		s.customer = models.Customer{Name: profile.Name, Phone: profile.Phone}
		if profile.Address != nil {
			a := *profile.Address
			s.address = &a
		}
	}
	return nil
}

func (s *Session) base(eventType string) events.BaseEvent {
	return events.NewBase(eventType, s.deps.TenantID, s.id, s.now())
}

func (s *Session) publish(ctx context.Context, ev events.Event) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, ev); err != nil {
		s.log().WithError(err).WithField("event", ev.EventType()).Warn("failed to publish event")
	}
}

// Manager keeps one live session per device.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps, sessions: make(map[string]*Session)}
}

// Get returns the live session for id, restoring it from the store on first
// use.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := newSession(id, m.deps)
	if err := s.restore(ctx); err != nil {
		return nil, errors.Wrapf(err, "restore session %s", id)
	}
	m.sessions[id] = s
	return s, nil
}

// Close stops tracking in every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
}
