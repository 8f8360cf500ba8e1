package catalog

import (
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/shopspring/decimal"
)

// ComboSelection tracks how many units of each candidate the customer picked
// in every visible step of a combo. Unmet cardinality is reported through
// Ready and UnmetSteps rather than as an error.
type ComboSelection struct {
	steps  []models.ComboStep
	counts map[string]map[string]int
}

func NewComboSelection(steps []models.ComboStep) *ComboSelection {
	counts := make(map[string]map[string]int, len(steps))
	for _, s := range steps {
		counts[s.ID] = make(map[string]int)
	}
	return &ComboSelection{steps: steps, counts: counts}
}

func (s *ComboSelection) step(stepID string) (models.ComboStep, bool) {
	for _, st := range s.steps {
		if st.ID == stepID {
			return st, true
		}
	}
	return models.ComboStep{}, false
}

// Increment adds one unit of productID to the step. It returns false and
// leaves the counts unchanged when the step is already at its maximum or the
// product is not a candidate of the step.
func (s *ComboSelection) Increment(stepID, productID string) bool {
	st, ok := s.step(stepID)
	if !ok || !hasCandidate(st, productID) {
		return false
	}
	if st.Max > 0 && s.StepCount(stepID) >= st.Max {
		return false
	}
	s.counts[stepID][productID]++
	return true
}

// Decrement removes one unit of productID from the step, if any.
func (s *ComboSelection) Decrement(stepID, productID string) bool {
	byProduct, ok := s.counts[stepID]
	if !ok || byProduct[productID] == 0 {
		return false
	}
	byProduct[productID]--
	if byProduct[productID] == 0 {
		delete(byProduct, productID)
	}
	return true
}

func (s *ComboSelection) Count(stepID, productID string) int {
	return s.counts[stepID][productID]
}

func (s *ComboSelection) StepCount(stepID string) int {
	total := 0
	for _, n := range s.counts[stepID] {
		total += n
	}
	return total
}

// StepReady reports whether the step count is within [min, max].
func (s *ComboSelection) StepReady(stepID string) bool {
	st, ok := s.step(stepID)
	if !ok {
		return false
	}
	n := s.StepCount(stepID)
	if n < st.Min {
		return false
	}
	return st.Max <= 0 || n <= st.Max
}

func (s *ComboSelection) Ready() bool {
	return len(s.UnmetSteps()) == 0
}

// UnmetSteps lists the steps that are not ready, in display order.
func (s *ComboSelection) UnmetSteps() []models.ComboStep {
	var unmet []models.ComboStep
	for _, st := range s.steps {
		if !s.StepReady(st.ID) {
			unmet = append(unmet, st)
		}
	}
	return unmet
}

// Choices renders the picks as cart choices and the per-unit extra prices as
// selected options, so that they are carried by the cart line total.
func (s *ComboSelection) Choices(lookup Lookup) ([]models.ComboChoice, []models.SelectedOption) {
	var choices []models.ComboChoice
	var extras []models.SelectedOption
	for _, st := range s.steps {
		for _, item := range st.Items {
			n := s.counts[st.ID][item.ProductID]
			if n == 0 {
				continue
			}
			name := item.ProductID
			if p, ok := lookup.Product(item.ProductID); ok {
				name = p.Name
			}
			choices = append(choices, models.ComboChoice{
				StepName:  st.Name,
				ProductID: item.ProductID,
				Name:      name,
				Quantity:  n,
			})
			if item.ExtraPrice.IsPositive() {
				extras = append(extras, models.SelectedOption{
					GroupTitle: st.Name,
					OptionName: name,
					Price:      item.ExtraPrice.Mul(decimal.NewFromInt(int64(n))),
				})
			}
		}
	}
	return choices, extras
}

func hasCandidate(st models.ComboStep, productID string) bool {
	for _, item := range st.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
