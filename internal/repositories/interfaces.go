package repositories

import (
	"context"
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/store"
)

var (
	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrPreconditionFailed
)

type ProductRepository interface {
	BulkCreate(ctx context.Context, products []*models.Product) error
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetAll(ctx context.Context) (map[string]*models.Product, error)
	Subscribe(ctx context.Context) (<-chan models.Product, error)
	Count(ctx context.Context) (int, error)
}

type OptionGroupRepository interface {
	BulkCreate(ctx context.Context, groups []*models.OptionGroup) error
	Create(ctx context.Context, group *models.OptionGroup) error
	GetAll(ctx context.Context) (map[string]*models.OptionGroup, error)
	Subscribe(ctx context.Context) (<-chan models.OptionGroup, error)
	Count(ctx context.Context) (int, error)
}

type CouponRepository interface {
	BulkCreate(ctx context.Context, coupons []*models.Coupon) error
	Create(ctx context.Context, coupon *models.Coupon) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Count(ctx context.Context) (int, error)
}

type OrderRepository interface {
	// Create stores a new order and fails with ErrConflict if the id exists.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetAll(ctx context.Context) ([]*models.Order, error)
	// UpdateStatus moves an order from one status to another and fails with
	// ErrConflict if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (*models.Order, error)
	// AttachFeedback stores the feedback of a completed order once.
	AttachFeedback(ctx context.Context, id string, feedback models.Feedback) (*models.Order, error)
	// MarkPrinted records that the kitchen ticket of an order was delivered.
	MarkPrinted(ctx context.Context, id string, at time.Time) error
	Subscribe(ctx context.Context) (<-chan models.Order, error)
	SubscribeByID(ctx context.Context, id string) (<-chan models.Order, error)
}

type CartRepository interface {
	Save(ctx context.Context, cart *models.SavedCart) error
	Load(ctx context.Context, sessionID string) (*models.SavedCart, error)
}

type ProfileRepository interface {
	Get(ctx context.Context, deviceID string) (*models.CustomerProfile, error)
	Save(ctx context.Context, profile *models.CustomerProfile) error
	MarkOrdered(ctx context.Context, deviceID string) error
}

// CatalogSource adapts the product and option group repositories to the
// catalog watcher.
type CatalogSource struct {
	Products     ProductRepository
	OptionGroups OptionGroupRepository
}

func (s CatalogSource) SubscribeProducts(ctx context.Context) (<-chan models.Product, error) {
	return s.Products.Subscribe(ctx)
}

func (s CatalogSource) SubscribeOptionGroups(ctx context.Context) (<-chan models.OptionGroup, error) {
	return s.OptionGroups.Subscribe(ctx)
}
