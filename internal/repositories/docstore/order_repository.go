package docstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/sirupsen/logrus"
)

type OrderRepository struct {
	store    store.Store
	tenantID string
	log      logrus.FieldLogger
}

func NewOrderRepository(s store.Store, tenantID string, log logrus.FieldLogger) *OrderRepository {
	return &OrderRepository{store: s, tenantID: tenantID, log: log}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.TenantID = r.tenantID
	_, err := put(ctx, r.store, models.CollectionOrders, r.tenantID, order.ID, order, store.IfNotExists())
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return get[models.Order](ctx, r.store, models.CollectionOrders, r.tenantID, id)
}

// GetAll returns every order, oldest first.
func (r *OrderRepository) GetAll(ctx context.Context) ([]*models.Order, error) {
	orders, err := list[models.Order](ctx, r.store, models.CollectionOrders, r.tenantID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (*models.Order, error) {
	patch := store.Patch{"status": to, "updatedAt": at}
	rec, err := r.store.Write(ctx, models.CollectionOrders, r.tenantID, id, patch, store.IfField("status", from))
	if err != nil {
		return nil, err
	}
	var order models.Order
	if err := rec.Decode(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) AttachFeedback(ctx context.Context, id string, feedback models.Feedback) (*models.Order, error) {
	patch := store.Patch{"feedback": feedback, "updatedAt": feedback.CreatedAt}
	rec, err := r.store.Write(ctx, models.CollectionOrders, r.tenantID, id, patch,
		store.IfField("status", models.OrderStatusCompleted),
		store.IfAbsent("feedback"),
	)
	if err != nil {
		return nil, err
	}
	var order models.Order
	if err := rec.Decode(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPrinted leaves updatedAt alone so the marker never outranks a status
// change on the board.
func (r *OrderRepository) MarkPrinted(ctx context.Context, id string, at time.Time) error {
	_, err := r.store.Write(ctx, models.CollectionOrders, r.tenantID, id, store.Patch{"printedAt": at}, store.IfExists())
	return err
}

func (r *OrderRepository) Subscribe(ctx context.Context) (<-chan models.Order, error) {
	in, err := r.store.Subscribe(ctx, models.CollectionOrders, r.tenantID)
	if err != nil {
		return nil, err
	}
	return decodeStream[models.Order](ctx, in, r.log), nil
}

func (r *OrderRepository) SubscribeByID(ctx context.Context, id string) (<-chan models.Order, error) {
	in, err := r.store.Subscribe(ctx, models.CollectionOrders, r.tenantID, store.Where("id", id))
	if err != nil {
		return nil, err
	}
	return decodeStream[models.Order](ctx, in, r.log), nil
}

type CartRepository struct {
	store    store.Store
	tenantID string
}

func NewCartRepository(s store.Store, tenantID string) *CartRepository {
	return &CartRepository{store: s, tenantID: tenantID}
}

// Save replaces the stored cart. Items is always written whole so a shorter
// cart never keeps lines from a longer one.
func (r *CartRepository) Save(ctx context.Context, cart *models.SavedCart) error {
	cart.TenantID = r.tenantID
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	_, err := put(ctx, r.store, models.CollectionCarts, r.tenantID, cart.SessionID, cart)
	return err
}

func (r *CartRepository) Load(ctx context.Context, sessionID string) (*models.SavedCart, error) {
	return get[models.SavedCart](ctx, r.store, models.CollectionCarts, r.tenantID, sessionID)
}

type ProfileRepository struct {
	store    store.Store
	tenantID string
}

func NewProfileRepository(s store.Store, tenantID string) *ProfileRepository {
	return &ProfileRepository{store: s, tenantID: tenantID}
}

func (r *ProfileRepository) Get(ctx context.Context, deviceID string) (*models.CustomerProfile, error) {
	return get[models.CustomerProfile](ctx, r.store, models.CollectionProfiles, r.tenantID, deviceID)
}

func (r *ProfileRepository) Save(ctx context.Context, profile *models.CustomerProfile) error {
	profile.TenantID = r.tenantID
	_, err := put(ctx, r.store, models.CollectionProfiles, r.tenantID, profile.DeviceID, profile)
	return err
}

func (r *ProfileRepository) MarkOrdered(ctx context.Context, deviceID string) error {
	_, err := r.store.Write(ctx, models.CollectionProfiles, r.tenantID, deviceID, store.Patch{
		"deviceId":   deviceID,
		"tenantId":   r.tenantID,
		"hasOrdered": true,
	})
	return err
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
