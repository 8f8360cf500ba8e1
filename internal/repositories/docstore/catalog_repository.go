package docstore

import (
	"context"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/sirupsen/logrus"
)

type ProductRepository struct {
	store    store.Store
	tenantID string
	log      logrus.FieldLogger
}

func NewProductRepository(s store.Store, tenantID string, log logrus.FieldLogger) *ProductRepository {
	return &ProductRepository{store: s, tenantID: tenantID, log: log}
}

func (r *ProductRepository) BulkCreate(ctx context.Context, products []*models.Product) error {
	for _, p := range products {
		if err := r.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	product.TenantID = r.tenantID
	_, err := put(ctx, r.store, models.CollectionProducts, r.tenantID, product.ID, product)
	return err
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return get[models.Product](ctx, r.store, models.CollectionProducts, r.tenantID, id)
}

func (r *ProductRepository) GetAll(ctx context.Context) (map[string]*models.Product, error) {
	products, err := list[models.Product](ctx, r.store, models.CollectionProducts, r.tenantID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepository) Subscribe(ctx context.Context) (<-chan models.Product, error) {
	in, err := r.store.Subscribe(ctx, models.CollectionProducts, r.tenantID)
	if err != nil {
		return nil, err
	}
	return decodeStream[models.Product](ctx, in, r.log), nil
}

func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	recs, err := r.store.List(ctx, models.CollectionProducts, r.tenantID)
	return len(recs), err
}

type OptionGroupRepository struct {
	store    store.Store
	tenantID string
	log      logrus.FieldLogger
}

func NewOptionGroupRepository(s store.Store, tenantID string, log logrus.FieldLogger) *OptionGroupRepository {
	return &OptionGroupRepository{store: s, tenantID: tenantID, log: log}
}

func (r *OptionGroupRepository) BulkCreate(ctx context.Context, groups []*models.OptionGroup) error {
	for _, g := range groups {
		if err := r.Create(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (r *OptionGroupRepository) Create(ctx context.Context, group *models.OptionGroup) error {
	group.TenantID = r.tenantID
	_, err := put(ctx, r.store, models.CollectionOptionGroups, r.tenantID, group.ID, group)
	return err
}

func (r *OptionGroupRepository) GetAll(ctx context.Context) (map[string]*models.OptionGroup, error) {
	groups, err := list[models.OptionGroup](ctx, r.store, models.CollectionOptionGroups, r.tenantID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.OptionGroup, len(groups))
	for _, g := range groups {
		out[g.ID] = g
	}
	return out, nil
}

func (r *OptionGroupRepository) Subscribe(ctx context.Context) (<-chan models.OptionGroup, error) {
	in, err := r.store.Subscribe(ctx, models.CollectionOptionGroups, r.tenantID)
	if err != nil {
		return nil, err
	}
	return decodeStream[models.OptionGroup](ctx, in, r.log), nil
}

func (r *OptionGroupRepository) Count(ctx context.Context) (int, error) {
	recs, err := r.store.List(ctx, models.CollectionOptionGroups, r.tenantID)
	return len(recs), err
}

type CouponRepository struct {
	store    store.Store
	tenantID string
}

func NewCouponRepository(s store.Store, tenantID string) *CouponRepository {
	return &CouponRepository{store: s, tenantID: tenantID}
}

func (r *CouponRepository) BulkCreate(ctx context.Context, coupons []*models.Coupon) error {
	for _, c := range coupons {
		if err := r.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Create stores a coupon keyed by its upper-cased code.
func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.TenantID = r.tenantID
	coupon.Code = normalizeCode(coupon.Code)
	_, err := put(ctx, r.store, models.CollectionCoupons, r.tenantID, coupon.Code, coupon)
	return err
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return get[models.Coupon](ctx, r.store, models.CollectionCoupons, r.tenantID, normalizeCode(code))
}

func (r *CouponRepository) Count(ctx context.Context) (int, error) {
	recs, err := r.store.List(ctx, models.CollectionCoupons, r.tenantID)
	return len(recs), err
}
