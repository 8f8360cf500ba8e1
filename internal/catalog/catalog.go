package catalog

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Source streams catalog documents, first the current state and then every
// change.
type Source interface {
	SubscribeProducts(ctx context.Context) (<-chan models.Product, error)
	SubscribeOptionGroups(ctx context.Context) (<-chan models.OptionGroup, error)
}

type snapshot struct {
	products map[string]models.Product
	groups   map[string]models.OptionGroup
}

// Catalog is a live, read-mostly view of the products and option groups of
// one tenant, resolved for a single sales channel. Readers always see the
// latest published snapshot.
type Catalog struct {
	channel string
	log     logrus.FieldLogger

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

func New(channel string, log logrus.FieldLogger) *Catalog {
	c := &Catalog{channel: channel, log: log}
	c.snap.Store(&snapshot{
		products: map[string]models.Product{},
		groups:   map[string]models.OptionGroup{},
	})
	return c
}

func (c *Catalog) Channel() string {
	return c.channel
}

func (c *Catalog) Product(id string) (models.Product, bool) {
	p, ok := c.snap.Load().products[id]
	return p, ok
}

func (c *Catalog) OptionGroup(id string) (models.OptionGroup, bool) {
	g, ok := c.snap.Load().groups[id]
	return g, ok
}

// OptionGroupsFor returns the known option groups of p in declared order.
func (c *Catalog) OptionGroupsFor(p models.Product) []models.OptionGroup {
	snap := c.snap.Load()
	groups := make([]models.OptionGroup, 0, len(p.OptionGroupIDs))
	for _, id := range p.OptionGroupIDs {
		if g, ok := snap.groups[id]; ok {
			groups = append(groups, g)
		}
	}
	return groups
}

// Products returns every product ordered by resolved sort order then name.
func (c *Catalog) Products() []models.Product {
	snap := c.snap.Load()
	out := make([]models.Product, 0, len(snap.products))
	for _, p := range snap.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := ResolveChannel(out[i], c.channel), ResolveChannel(out[j], c.channel)
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.DisplayName < b.DisplayName
	})
	return out
}

// Available returns the products that can be sold on the catalog channel.
func (c *Catalog) Available() []models.Product {
	var out []models.Product
	for _, p := range c.Products() {
		if c.IsAvailable(p) {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Resolve(p models.Product) models.ChannelConfig {
	return ResolveChannel(p, c.channel)
}

func (c *Catalog) IsAvailable(p models.Product) bool {
	return IsAvailable(p, c.channel, c)
}

func (c *Catalog) VisibleSteps(p models.Product) []models.ComboStep {
	return VisibleSteps(p, c.channel, c)
}

// SetProducts replaces the product set.
func (c *Catalog) SetProducts(products []models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.snap.Load()
	next := &snapshot{products: make(map[string]models.Product, len(products)), groups: old.groups}
	for _, p := range products {
		next.products[p.ID] = p
	}
	c.snap.Store(next)
}

// SetOptionGroups replaces the option group set.
func (c *Catalog) SetOptionGroups(groups []models.OptionGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.snap.Load()
	next := &snapshot{products: old.products, groups: make(map[string]models.OptionGroup, len(groups))}
	for _, g := range groups {
		next.groups[g.ID] = g
	}
	c.snap.Store(next)
}

func (c *Catalog) upsertProduct(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.snap.Load()
	products := make(map[string]models.Product, len(old.products)+1)
	for id, existing := range old.products {
		products[id] = existing
	}
	products[p.ID] = p
	c.snap.Store(&snapshot{products: products, groups: old.groups})
}

func (c *Catalog) upsertOptionGroup(g models.OptionGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.snap.Load()
	groups := make(map[string]models.OptionGroup, len(old.groups)+1)
	for id, existing := range old.groups {
		groups[id] = existing
	}
	groups[g.ID] = g
	c.snap.Store(&snapshot{products: old.products, groups: groups})
}

// Watch keeps the catalog in sync with src until ctx is done.
func (c *Catalog) Watch(ctx context.Context, src Source) error {
	products, err := src.SubscribeProducts(ctx)
	if err != nil {
		return err
	}
	groups, err := src.SubscribeOptionGroups(ctx)
	if err != nil {
		return err
	}

	for products != nil || groups != nil {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-products:
			if !ok {
				products = nil
				continue
			}
			c.upsertProduct(p)
			c.log.WithFields(logrus.Fields{"product_id": p.ID, "available": c.IsAvailable(p)}).Debug("catalog product updated")
		case g, ok := <-groups:
			if !ok {
				groups = nil
				continue
			}
			c.upsertOptionGroup(g)
			c.log.WithField("option_group_id", g.ID).Debug("catalog option group updated")
		}
	}
	return nil
}

// BuildItem turns a configured product into a cart line. It returns false
// while any required option group or visible combo step is unmet.
func (c *Catalog) BuildItem(p models.Product, quantity int, notes string, options *OptionSelection, combo *ComboSelection) (models.CartItem, bool) {
	item := models.CartItem{
		LineID:   uuid.NewString(),
		Product:  p,
		Quantity: quantity,
		Notes:    notes,
	}
	if options != nil {
		if !options.Ready() {
			return models.CartItem{}, false
		}
		item.SelectedOptions = options.Selected()
	}
	if combo != nil {
		if !combo.Ready() {
			return models.CartItem{}, false
		}
		choices, extras := combo.Choices(c)
		item.ComboChoices = choices
		item.SelectedOptions = append(item.SelectedOptions, extras...)
	}
	return item, true
}
