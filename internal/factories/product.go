package factories

import (
	"fmt"
	"strings"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/shopspring/decimal"
)

type section struct {
	category string
	items    []string
	min, max int
	cost     float64 // share of the price
}

var menu = []section{
	{"Lanches", []string{"X-Burger", "X-Salada", "X-Bacon", "X-Tudo", "Cheeseburger Duplo"}, 18, 38, 0.38},
	{"Pizzas", []string{"Margherita", "Calabresa", "Portuguesa", "Quatro Queijos"}, 45, 75, 0.3},
	{"Acompanhamentos", []string{"Batata Frita", "Onion Rings", "Mandioca Frita"}, 12, 24, 0.25},
	{"Bebidas", []string{"Coca-Cola Lata", "Guaraná Antarctica", "Suco de Laranja", "Água Mineral", "Cerveja Long Neck"}, 5, 14, 0.45},
	{"Sobremesas", []string{"Pudim", "Brownie", "Petit Gâteau", "Café Expresso"}, 8, 22, 0.3},
}

type ProductFactory struct {
	TenantID string
}

// CreateOptionGroups returns the groups attached to burgers: a required
// doneness choice and up to three extras.
func (pf *ProductFactory) CreateOptionGroups() []*models.OptionGroup {
	return []*models.OptionGroup{
		{
			ID:           "doneness",
			TenantID:     pf.TenantID,
			Title:        "Ponto da carne",
			Type:         models.OptionGroupSingle,
			MinSelection: 1,
			MaxSelection: 1,
			Required:     true,
			Options: []models.Option{
				{ID: "rare", Name: "Mal passado", Price: decimal.Zero},
				{ID: "medium", Name: "Ao ponto", Price: decimal.Zero},
				{ID: "well", Name: "Bem passado", Price: decimal.Zero},
			},
		},
		{
			ID:           "extras",
			TenantID:     pf.TenantID,
			Title:        "Adicionais",
			Type:         models.OptionGroupMulti,
			MaxSelection: 3,
			Options: []models.Option{
				{ID: "bacon", Name: "Bacon", Price: decimal.NewFromInt(4)},
				{ID: "cheddar", Name: "Cheddar", Price: decimal.RequireFromString("3.5")},
				{ID: "egg", Name: "Ovo", Price: decimal.NewFromInt(2)},
				{ID: "onion", Name: "Cebola caramelizada", Price: decimal.NewFromInt(3)},
			},
		},
	}
}

// CreateMenu returns every simple product of the demo menu. Burgers carry
// the option groups and some products get a delivery channel markup or a
// promotion.
func (pf *ProductFactory) CreateMenu() []*models.Product {
	var products []*models.Product
	order := 0
	for _, s := range menu {
		for _, name := range s.items {
			order++
			p := &models.Product{
				ID:          slug(name),
				TenantID:    pf.TenantID,
				Name:        name,
				Description: fake.Lorem().Sentence(8),
				Category:    s.category,
				Type:        models.ProductTypeSimple,
				Price:       price(s.min, s.max),
				IsAvailable: fake.IntBetween(1, 20) > 1,
				SortOrder:   order,
			}
			p.Cost = p.Price.Mul(decimal.NewFromFloat(s.cost)).Round(2)
			if s.category == "Lanches" {
				p.OptionGroupIDs = []string{"doneness", "extras"}
			}
			if fake.IntBetween(1, 5) == 1 {
				p.PromotionalPrice = p.Price.Mul(decimal.RequireFromString("0.85")).Round(1)
			}
			if fake.Bool() {
				p.Channels = []models.ChannelConfig{{
					Channel:     models.ChannelDelivery,
					Price:       p.Price.Mul(decimal.RequireFromString("1.1")).Round(1),
					IsAvailable: p.IsAvailable,
					SortOrder:   p.SortOrder,
				}}
			}
			products = append(products, p)
		}
	}
	return products
}

// CreateCombo builds a combo around main with a fixed side and a drink step
// offering every drink in products.
func (pf *ProductFactory) CreateCombo(main, side *models.Product, products []*models.Product) *models.Product {
	var drinks []models.ComboStepItem
	for _, p := range products {
		if p.Category != "Bebidas" {
			continue
		}
		extra := decimal.Zero
		if strings.Contains(strings.ToLower(p.Name), "cerveja") {
			extra = decimal.NewFromInt(4)
		}
		drinks = append(drinks, models.ComboStepItem{ProductID: p.ID, ExtraPrice: extra})
	}

	full := main.Price.Add(side.Price)
	combo := &models.Product{
		ID:          "combo-" + main.ID,
		TenantID:    pf.TenantID,
		Name:        fmt.Sprintf("Combo %s", main.Name),
		Description: fmt.Sprintf("%s, %s e bebida", main.Name, side.Name),
		Category:    "Combos",
		Type:        models.ProductTypeCombo,
		Price:       full.Mul(decimal.RequireFromString("0.9")).Round(1),
		Cost:        main.Cost.Add(side.Cost),
		IsAvailable: true,
		SortOrder:   0,
		ComboItems: []models.ComboItem{
			{ProductID: main.ID, Quantity: 1},
			{ProductID: side.ID, Quantity: 1},
		},
		ComboSteps: []models.ComboStep{{
			ID:    "drink",
			Name:  "Escolha sua bebida",
			Min:   1,
			Max:   1,
			Items: drinks,
		}},
	}
	return combo
}

func slug(name string) string {
	replacer := strings.NewReplacer(
		" ", "-", "á", "a", "â", "a", "ã", "a", "à", "a", "é", "e", "ê", "e",
		"í", "i", "ó", "o", "ô", "o", "õ", "o", "ú", "u", "ç", "c",
	)
	return replacer.Replace(strings.ToLower(name))
}
