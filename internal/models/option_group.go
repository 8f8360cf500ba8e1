package models

import "github.com/shopspring/decimal"

type Option struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type OptionGroup struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenantId"`
	Title        string          `json:"title"`
	Type         OptionGroupType `json:"type"`
	MinSelection int             `json:"minSelection"`
	MaxSelection int             `json:"maxSelection"`
	Required     bool            `json:"required"`
	Options      []Option        `json:"options"`
}

func (g OptionGroup) Option(id string) (Option, bool) {
	for _, o := range g.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}
