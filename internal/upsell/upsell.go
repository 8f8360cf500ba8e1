// Package upsell suggests a complementary product right after a cart
// addition. Strategies are tried in order and the first one that returns a
// product wins.
package upsell

import (
	"context"
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/sirupsen/logrus"
)

// Request is what a strategy sees: the product just added, the cart after the
// addition and the products currently available for sale.
type Request struct {
	Added     models.Product
	Cart      []models.CartItem
	Available []models.Product
}

type Strategy interface {
	Name() string
	Suggest(ctx context.Context, req Request) (*models.Product, error)
}

type Suggestion struct {
	Product  models.Product `json:"product"`
	Strategy string         `json:"strategy"`
}

// Engine runs an ordered strategy chain. Each strategy runs under its own
// timeout and any error, timeout or unusable result counts as no suggestion.
type Engine struct {
	strategies []Strategy
	timeouts   map[string]time.Duration
	timeout    time.Duration
	log        logrus.FieldLogger
}

func NewChain(timeout time.Duration, log logrus.FieldLogger, strategies ...Strategy) *Engine {
	return &Engine{
		strategies: strategies,
		timeouts:   map[string]time.Duration{},
		timeout:    timeout,
		log:        log,
	}
}

// NewEngine builds the default chain from settings. ai may be nil.
func NewEngine(settings models.UpsellSettings, ai Suggester, log logrus.FieldLogger) *Engine {
	if !settings.Enabled {
		return NewChain(settings.StrategyTimeout, log)
	}
	e := NewChain(settings.StrategyTimeout, log,
		&ComplementStrategy{
			Label:     "drink_for_snack",
			Triggers:  settings.SnackTerms,
			Wanted:    settings.DrinkTerms,
			Preferred: settings.PreferredDrinkKeywords,
		},
		&ComplementStrategy{
			Label:     "side_for_drink",
			Triggers:  settings.DrinkTerms,
			Wanted:    settings.SideTerms,
			Preferred: settings.PreferredSideKeywords,
		},
		&RuleTableStrategy{Rules: settings.Rules},
	)
	if ai != nil {
		s := &AIStrategy{Suggester: ai}
		e.strategies = append(e.strategies, s)
		e.timeouts[s.Name()] = settings.AITimeout
	}
	return e
}

// Suggest never fails. It returns nil when no strategy produced a product
// that is available and different from the one just added.
func (e *Engine) Suggest(ctx context.Context, req Request) *Suggestion {
	for _, s := range e.strategies {
		p := e.run(ctx, s, req)
		if p == nil {
			continue
		}
		if p.ID == req.Added.ID || !containsProduct(req.Available, p.ID) {
			continue
		}
		e.log.WithFields(logrus.Fields{
			"strategy":   s.Name(),
			"added_id":   req.Added.ID,
			"suggestion": p.ID,
		}).Debug("upsell suggestion")
		return &Suggestion{Product: *p, Strategy: s.Name()}
	}
	return nil
}

func (e *Engine) run(ctx context.Context, s Strategy, req Request) *models.Product {
	timeout := e.timeout
	if t, ok := e.timeouts[s.Name()]; ok && t > 0 {
		timeout = t
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		p   *models.Product
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := s.Suggest(ctx, req)
		done <- result{p, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			e.log.WithError(r.err).WithField("strategy", s.Name()).Warn("upsell strategy failed")
			return nil
		}
		return r.p
	case <-ctx.Done():
		e.log.WithField("strategy", s.Name()).Warn("upsell strategy timed out")
		return nil
	}
}

func containsProduct(products []models.Product, id string) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}
