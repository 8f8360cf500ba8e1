// Package catalog resolves per-channel product configuration and tracks the
// in-progress combo and option selections for a product being configured.
package catalog

import (
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/shopspring/decimal"
)

// Lookup finds a product by id. It is satisfied by *Catalog.
type Lookup interface {
	Product(id string) (models.Product, bool)
}

// ResolveChannel returns the configuration of product p on channel. An
// explicit override wins, then the first override defined, then the base
// product fields. Blank display strings in an override fall back to the base.
func ResolveChannel(p models.Product, channel string) models.ChannelConfig {
	base := models.ChannelConfig{
		Channel:          channel,
		Price:            p.Price,
		PromotionalPrice: p.PromotionalPrice,
		IsAvailable:      p.IsAvailable,
		DisplayName:      p.Name,
		Description:      p.Description,
		Image:            p.Image,
		Category:         p.Category,
		SortOrder:        p.SortOrder,
	}
	if len(p.Channels) == 0 {
		return base
	}

	override := p.Channels[0]
	for _, c := range p.Channels {
		if c.Channel == channel {
			override = c
			break
		}
	}

	resolved := override
	resolved.Channel = channel
	if resolved.DisplayName == "" {
		resolved.DisplayName = base.DisplayName
	}
	if resolved.Description == "" {
		resolved.Description = base.Description
	}
	if resolved.Image == "" {
		resolved.Image = base.Image
	}
	if resolved.Category == "" {
		resolved.Category = base.Category
	}
	return resolved
}

// EffectivePrice is the unit price charged for p on channel.
func EffectivePrice(p models.Product, channel string) decimal.Decimal {
	return ResolveChannel(p, channel).EffectivePrice()
}

// IsAvailable reports whether p can be sold on channel. A combo is only
// available when every fixed item is known and available on the same channel.
func IsAvailable(p models.Product, channel string, lookup Lookup) bool {
	if !ResolveChannel(p, channel).IsAvailable {
		return false
	}
	if !p.IsCombo() {
		return true
	}
	for _, item := range p.ComboItems {
		fixed, ok := lookup.Product(item.ProductID)
		if !ok || !ResolveChannel(fixed, channel).IsAvailable {
			return false
		}
	}
	return true
}

// VisibleSteps returns the combo steps that still have at least one available
// candidate, with unavailable candidates filtered out.
func VisibleSteps(p models.Product, channel string, lookup Lookup) []models.ComboStep {
	steps := make([]models.ComboStep, 0, len(p.ComboSteps))
	for _, step := range p.ComboSteps {
		items := make([]models.ComboStepItem, 0, len(step.Items))
		for _, item := range step.Items {
			candidate, ok := lookup.Product(item.ProductID)
			if ok && IsAvailable(candidate, channel, lookup) {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			continue
		}
		step.Items = items
		steps = append(steps, step)
	}
	return steps
}
