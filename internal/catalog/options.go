package catalog

import "github.com/chrisdamba/menuflow/internal/models"

// OptionSelection holds the option picks for one product being configured.
type OptionSelection struct {
	groups []models.OptionGroup
	picks  map[string][]string
}

func NewOptionSelection(groups []models.OptionGroup) *OptionSelection {
	return &OptionSelection{groups: groups, picks: make(map[string][]string)}
}

func (s *OptionSelection) group(groupID string) (models.OptionGroup, bool) {
	for _, g := range s.groups {
		if g.ID == groupID {
			return g, true
		}
	}
	return models.OptionGroup{}, false
}

// Toggle picks or unpicks an option. A SINGLE group replaces its current pick.
// A MULTI group rejects a new pick once maxSelection is reached.
func (s *OptionSelection) Toggle(groupID, optionID string) bool {
	g, ok := s.group(groupID)
	if !ok {
		return false
	}
	if _, ok := g.Option(optionID); !ok {
		return false
	}

	current := s.picks[groupID]
	for i, id := range current {
		if id == optionID {
			s.picks[groupID] = append(current[:i:i], current[i+1:]...)
			return true
		}
	}

	if g.Type == models.OptionGroupSingle {
		s.picks[groupID] = []string{optionID}
		return true
	}
	if g.MaxSelection > 0 && len(current) >= g.MaxSelection {
		return false
	}
	s.picks[groupID] = append(current, optionID)
	return true
}

func (s *OptionSelection) Picked(groupID string) []string {
	return s.picks[groupID]
}

// UnmetGroups lists required groups with fewer than max(minSelection, 1) picks.
func (s *OptionSelection) UnmetGroups() []models.OptionGroup {
	var unmet []models.OptionGroup
	for _, g := range s.groups {
		need := g.MinSelection
		if need < 1 {
			need = 1
		}
		if !g.Required && g.MinSelection == 0 {
			continue
		}
		if len(s.picks[g.ID]) < need {
			unmet = append(unmet, g)
		}
	}
	return unmet
}

func (s *OptionSelection) Ready() bool {
	return len(s.UnmetGroups()) == 0
}

// Selected renders the picks in group order as cart options.
func (s *OptionSelection) Selected() []models.SelectedOption {
	var out []models.SelectedOption
	for _, g := range s.groups {
		for _, id := range s.picks[g.ID] {
			o, _ := g.Option(id)
			out = append(out, models.SelectedOption{
				GroupTitle: g.Title,
				OptionName: o.Name,
				Price:      o.Price,
			})
		}
	}
	return out
}
