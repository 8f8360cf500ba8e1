// Package api exposes the customer ordering flow and the staff order board
// over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chrisdamba/menuflow/internal/catalog"
	"github.com/chrisdamba/menuflow/internal/lifecycle"
	"github.com/chrisdamba/menuflow/internal/repositories"
	"github.com/chrisdamba/menuflow/internal/session"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	catalog  *catalog.Catalog
	sessions *session.Manager
	board    *lifecycle.Board
	tracker  *lifecycle.Tracker
	orders   repositories.OrderRepository
	log      logrus.FieldLogger
}

func NewServer(c *catalog.Catalog, sessions *session.Manager, board *lifecycle.Board, tracker *lifecycle.Tracker, orders repositories.OrderRepository, log logrus.FieldLogger) *Server {
	return &Server{catalog: c, sessions: sessions, board: board, tracker: tracker, orders: orders, log: log}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/menu", s.getMenu).Methods(http.MethodGet)

	sess := v1.PathPrefix("/sessions/{sessionID}").Subrouter()
	sess.HandleFunc("/cart", s.getCart).Methods(http.MethodGet)
	sess.HandleFunc("/cart", s.clearCart).Methods(http.MethodDelete)
	sess.HandleFunc("/cart/items", s.addItem).Methods(http.MethodPost)
	sess.HandleFunc("/cart/items/{index:[0-9]+}", s.updateItem).Methods(http.MethodPatch)
	sess.HandleFunc("/cart/items/{index:[0-9]+}", s.removeItem).Methods(http.MethodDelete)
	sess.HandleFunc("/coupon", s.applyCoupon).Methods(http.MethodPost)
	sess.HandleFunc("/coupon", s.removeCoupon).Methods(http.MethodDelete)
	sess.HandleFunc("/checkout", s.updateCheckout).Methods(http.MethodPut)
	sess.HandleFunc("/orders", s.placeOrder).Methods(http.MethodPost)
	sess.HandleFunc("/order", s.trackedOrder).Methods(http.MethodGet)

	v1.HandleFunc("/orders", s.listOrders).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}", s.getOrder).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}/advance", s.advanceOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/cancel", s.cancelOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/feedback", s.attachFeedback).Methods(http.MethodPost)

	return s.logMiddleware(r)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"url":        r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
			"remoteAddr": r.RemoteAddr,
		}).Info("request served")
	})
}

type errorBody struct {
	Error  string      `json:"error"`
	Reason string      `json:"reason,omitempty"`
	Detail interface{} `json:"detail,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
