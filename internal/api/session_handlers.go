package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chrisdamba/menuflow/internal/cart"
	"github.com/chrisdamba/menuflow/internal/catalog"
	"github.com/chrisdamba/menuflow/internal/checkout"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/pricing"
	"github.com/chrisdamba/menuflow/internal/session"
	"github.com/chrisdamba/menuflow/internal/upsell"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type menuEntry struct {
	Product      models.Product       `json:"product"`
	Resolved     models.ChannelConfig `json:"resolved"`
	Price        decimal.Decimal      `json:"price"`
	OptionGroups []models.OptionGroup `json:"optionGroups,omitempty"`
	Steps        []models.ComboStep   `json:"comboSteps,omitempty"`
}

func (s *Server) getMenu(w http.ResponseWriter, _ *http.Request) {
	products := s.catalog.Available()
	out := make([]menuEntry, 0, len(products))
	for _, p := range products {
		resolved := s.catalog.Resolve(p)
		entry := menuEntry{
			Product:      p,
			Resolved:     resolved,
			Price:        resolved.EffectivePrice(),
			OptionGroups: s.catalog.OptionGroupsFor(p),
		}
		if p.IsCombo() {
			entry.Steps = s.catalog.VisibleSteps(p)
		}
		out = append(out, entry)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return sess, true
}

type cartLine struct {
	Index     int             `json:"index"`
	Item      models.CartItem `json:"item"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type cartView struct {
	Items  []cartLine     `json:"items"`
	Count  int            `json:"count"`
	Coupon *models.Coupon `json:"coupon,omitempty"`
	Quote  pricing.Quote  `json:"quote"`
}

func (s *Server) cartView(r *http.Request, sess *session.Session) cartView {
	c := sess.Cart()
	items := c.Items()
	view := cartView{
		Items:  make([]cartLine, 0, len(items)),
		Count:  c.Count(),
		Coupon: sess.Coupon(),
		Quote:  sess.Quote(r.Context()),
	}
	for i, it := range items {
		view.Items = append(view.Items, cartLine{Index: i, Item: it, UnitPrice: c.UnitPrice(it), LineTotal: c.LineTotal(it)})
	}
	return view
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.cartView(r, sess))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.ClearCart(r.Context())
	s.writeJSON(w, http.StatusOK, s.cartView(r, sess))
}

type optionPick struct {
	GroupID  string `json:"groupId"`
	OptionID string `json:"optionId"`
}

type comboPick struct {
	StepID    string `json:"stepId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type addItemRequest struct {
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	Notes     string       `json:"notes"`
	Options   []optionPick `json:"options"`
	Combo     []comboPick  `json:"combo"`
}

type addItemResponse struct {
	Cart       cartView           `json:"cart"`
	Suggestion *upsell.Suggestion `json:"suggestion,omitempty"`
}

type unmetSelection struct {
	Groups []string `json:"groups,omitempty"`
	Steps  []string `json:"steps,omitempty"`
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	product, found := s.catalog.Product(req.ProductID)
	if !found || !s.catalog.IsAvailable(product) {
		s.writeError(w, http.StatusNotFound, errors.Errorf("product %q is not available", req.ProductID))
		return
	}

	options := catalog.NewOptionSelection(s.catalog.OptionGroupsFor(product))
	for _, pick := range req.Options {
		if !options.Toggle(pick.GroupID, pick.OptionID) {
			s.writeError(w, http.StatusUnprocessableEntity, errors.Errorf("option %s/%s cannot be selected", pick.GroupID, pick.OptionID))
			return
		}
	}
	var combo *catalog.ComboSelection
	if product.IsCombo() {
		combo = catalog.NewComboSelection(s.catalog.VisibleSteps(product))
		for _, pick := range req.Combo {
			qty := pick.Quantity
			if qty == 0 {
				qty = 1
			}
			for i := 0; i < qty; i++ {
				if !combo.Increment(pick.StepID, pick.ProductID) {
					s.writeError(w, http.StatusUnprocessableEntity, errors.Errorf("cannot pick %s for step %s", pick.ProductID, pick.StepID))
					return
				}
			}
		}
	}

	item, ready := s.catalog.BuildItem(product, req.Quantity, req.Notes, options, combo)
	if !ready {
		unmet := unmetSelection{}
		for _, g := range options.UnmetGroups() {
			unmet.Groups = append(unmet.Groups, g.ID)
		}
		if combo != nil {
			for _, st := range combo.UnmetSteps() {
				unmet.Steps = append(unmet.Steps, st.ID)
			}
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "selection incomplete", Detail: unmet})
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	suggestion, err := sess.AddItem(r.Context(), item)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, addItemResponse{Cart: s.cartView(r, sess), Suggestion: suggestion})
}

type updateItemRequest struct {
	Delta int `json:"delta"`
}

func lineIndex(r *http.Request) int {
	i, _ := strconv.Atoi(mux.Vars(r)["index"])
	return i
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.UpdateQuantity(r.Context(), lineIndex(r), req.Delta); err != nil {
		s.cartError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.cartView(r, sess))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveItem(r.Context(), lineIndex(r)); err != nil {
		s.cartError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.cartView(r, sess))
}

func (s *Server) cartError(w http.ResponseWriter, err error) {
	if errors.Is(err, cart.ErrLineNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

type couponRequest struct {
	Code string `json:"code"`
}

func (s *Server) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	_, err := sess.ApplyCoupon(r.Context(), req.Code)
	switch {
	case errors.Is(err, session.ErrCouponNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, session.ErrCouponInactive), errors.Is(err, session.ErrCouponNewCustomerOnly):
		s.writeError(w, http.StatusUnprocessableEntity, err)
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		s.writeJSON(w, http.StatusOK, s.cartView(r, sess))
	}
}

func (s *Server) removeCoupon(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.RemoveCoupon(r.Context())
	s.writeJSON(w, http.StatusOK, s.cartView(r, sess))
}

type checkoutRequest struct {
	Customer     *models.Customer     `json:"customer"`
	Mode         models.OrderType     `json:"mode"`
	Payment      models.PaymentMethod `json:"payment"`
	CashTendered *decimal.Decimal     `json:"cashTendered"`
	Address      *models.Address      `json:"address"`
	ScheduledTo  *time.Time           `json:"scheduledTo"`
}

// updateCheckout replaces the checkout choices sent in the body. Omitted
// fields keep their current value.
func (s *Server) updateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Mode != "" && !req.Mode.IsValid() {
		s.writeError(w, http.StatusBadRequest, errors.Errorf("unknown order type %q", req.Mode))
		return
	}
	if req.Payment != "" && !req.Payment.IsValid() {
		s.writeError(w, http.StatusBadRequest, errors.Errorf("unknown payment method %q", req.Payment))
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if req.Customer != nil {
		if err := sess.SetCustomer(r.Context(), req.Customer.Name, req.Customer.Phone); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if req.Mode != "" {
		sess.SetMode(req.Mode)
	}
	if req.Payment != "" {
		sess.SetPayment(req.Payment, req.CashTendered)
	}
	if req.Address != nil {
		sess.SetAddress(req.Address)
	}
	if req.ScheduledTo != nil {
		sess.SetSchedule(req.ScheduledTo)
	}
	s.writeJSON(w, http.StatusOK, s.cartView(r, sess))
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	order, err := sess.PlaceOrder(r.Context())
	if reason, rejected := checkout.ReasonOf(err); rejected {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Reason: string(reason)})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, order)
}

func (s *Server) trackedOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	order := sess.TrackedOrder()
	if order == nil {
		s.writeError(w, http.StatusNotFound, errors.New("no order placed in this session"))
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}
