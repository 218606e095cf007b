package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"clinic-orders/internal/assignment"
	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/intake"
	"clinic-orders/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type HospitalDirectory interface {
	HospitalExists(ctx context.Context, hospitalID int64) (bool, error)
}

type server struct {
	intake        *intake.Service
	engine        *assignment.Engine
	hospitals     HospitalDirectory
	health        func(ctx context.Context) error
	boardInterval time.Duration
	log           *zap.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(s.log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/hospitals/{hospitalID}/workload", s.handleWorkload)
		r.Get("/hospitals/{hospitalID}/workload/stream", s.handleWorkloadStream)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createOrderResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"order_id"`
	Message string `json:"message"`
}

func (s *server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req intake.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, s.log, exceptions.ErrFieldValidation("body", "request body must be a JSON object"))
		return
	}

	orderID, err := s.intake.CreateOrder(r.Context(), req)
	if err != nil {
		renderError(w, r, s.log, err)
		return
	}

	renderJSON(w, http.StatusCreated, createOrderResponse{
		Success: true,
		OrderID: orderID,
		Message: "Order created and queued successfully",
	})
}

func (s *server) handleWorkload(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := s.hospitalParam(w, r)
	if !ok {
		return
	}

	board, err := s.engine.Workloads(r.Context(), hospitalID)
	if err != nil {
		renderError(w, r, s.log, err)
		return
	}
	renderJSON(w, http.StatusOK, board)
}

// hospitalParam reads {hospitalID} and checks the hospital exists, writing
// the error response itself when it does not.
func (s *server) hospitalParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	hospitalID, err := strconv.ParseInt(chi.URLParam(r, "hospitalID"), 10, 64)
	if err != nil || hospitalID <= 0 {
		renderError(w, r, s.log, exceptions.ErrFieldValidation("hospital_id", "must be a positive integer"))
		return 0, false
	}

	exists, err := s.hospitals.HospitalExists(r.Context(), hospitalID)
	if err != nil {
		renderError(w, r, s.log, err)
		return 0, false
	}
	if !exists {
		renderError(w, r, s.log, exceptions.ErrHospitalNotFound(hospitalID))
		return 0, false
	}
	return hospitalID, true
}
