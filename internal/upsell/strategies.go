package upsell

import (
	"context"
	"strings"

	"github.com/chrisdamba/menuflow/internal/models"
)

// ComplementStrategy suggests an item of the Wanted categories when the added
// product belongs to a Triggers category and the cart holds nothing Wanted.
// Candidates whose name contains a Preferred keyword come first.
type ComplementStrategy struct {
	Label     string
	Triggers  []string
	Wanted    []string
	Preferred []string
}

func (s *ComplementStrategy) Name() string {
	return s.Label
}

func (s *ComplementStrategy) Suggest(_ context.Context, req Request) (*models.Product, error) {
	if !matchesAny(req.Added.Category, s.Triggers) {
		return nil, nil
	}
	for _, it := range req.Cart {
		if matchesAny(it.Product.Category, s.Wanted) {
			return nil, nil
		}
	}

	var fallback *models.Product
	for i := range req.Available {
		p := &req.Available[i]
		if p.ID == req.Added.ID || !matchesAny(p.Category, s.Wanted) {
			continue
		}
		if matchesAny(p.Name, s.Preferred) {
			return p, nil
		}
		if fallback == nil {
			fallback = p
		}
	}
	return fallback, nil
}

// RuleTableStrategy maps the added product's category to keywords searched
// in the names of the other products.
type RuleTableStrategy struct {
	Rules []models.UpsellRule
}

func (s *RuleTableStrategy) Name() string {
	return "rule_table"
}

func (s *RuleTableStrategy) Suggest(_ context.Context, req Request) (*models.Product, error) {
	for _, rule := range s.Rules {
		if !matchesAny(req.Added.Category, []string{rule.Category}) {
			continue
		}
		for i := range req.Available {
			p := &req.Available[i]
			if p.ID != req.Added.ID && !inCart(req.Cart, p.ID) && matchesAny(p.Name, rule.Keywords) {
				return p, nil
			}
		}
	}
	return nil, nil
}

// Suggester is an external service that picks a product id to offer, or ""
// for none.
type Suggester interface {
	Suggest(ctx context.Context, added models.Product, available []models.Product) (string, error)
}

type AIStrategy struct {
	Suggester Suggester
}

func (s *AIStrategy) Name() string {
	return "ai"
}

func (s *AIStrategy) Suggest(ctx context.Context, req Request) (*models.Product, error) {
	id, err := s.Suggester.Suggest(ctx, req.Added, req.Available)
	if err != nil || id == "" {
		return nil, err
	}
	for i := range req.Available {
		if req.Available[i].ID == id {
			return &req.Available[i], nil
		}
	}
	return nil, nil
}

func matchesAny(value string, terms []string) bool {
	value = strings.ToLower(value)
	if value == "" {
		return false
	}
	for _, term := range terms {
		if term != "" && strings.Contains(value, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func inCart(items []models.CartItem, productID string) bool {
	for _, it := range items {
		if it.Product.ID == productID {
			return true
		}
	}
	return false
}
