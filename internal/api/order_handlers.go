package api

import (
	"context"
	"net/http"

	"github.com/chrisdamba/menuflow/internal/lifecycle"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/repositories"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	s.writeJSON(w, http.StatusOK, s.board.Orders(all))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if order, ok := s.board.Order(id); ok {
		s.writeJSON(w, http.StatusOK, order)
		return
	}
	order, err := s.orders.GetByID(r.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, errors.Errorf("order %s not found", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

type transitionRequest struct {
	Expected models.OrderStatus `json:"expected"`
}

type transitionResponse struct {
	Applied bool         `json:"applied"`
	Order   models.Order `json:"order"`
}

func (s *Server) advanceOrder(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.board.Advance)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.board.Cancel)
}

// transition answers 200 whether or not the board applied the change; a
// stale expected status is reported through applied=false.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, models.OrderStatus) (bool, error)) {
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Expected == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("expected status is required"))
		return
	}
	id := mux.Vars(r)["id"]
	applied, err := apply(r.Context(), id, req.Expected)
	if errors.Is(err, repositories.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, errors.Errorf("order %s not found", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	order, _ := s.board.Order(id)
	s.writeJSON(w, http.StatusOK, transitionResponse{Applied: applied, Order: order})
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) attachFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	id := mux.Vars(r)["id"]
	order, err := s.tracker.AttachFeedback(r.Context(), id, req.Rating, req.Comment)
	switch {
	case errors.Is(err, lifecycle.ErrInvalidRating), errors.Is(err, lifecycle.ErrNotCompleted):
		s.writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, lifecycle.ErrFeedbackExists):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, repositories.ErrNotFound):
		s.writeError(w, http.StatusNotFound, errors.Errorf("order %s not found", id))
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		s.writeJSON(w, http.StatusOK, order)
	}
}
