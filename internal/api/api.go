// Package api exposes the admin HTTP surface: event publishing, delivery
// inspection, and manual retries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hooklinehq/hookline/internal/delivery"
	"github.com/hooklinehq/hookline/internal/logging"
	"github.com/hooklinehq/hookline/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const defaultListLimit = 50

// Dispatcher fans an event out into staged deliveries.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType, eventID string, payload []byte) (int, error)
}

// DeliveryStore is the slice of the delivery store the API reads and retries
// through.
type DeliveryStore interface {
	Get(ctx context.Context, id string) (*delivery.Delivery, error)
	ListByEvent(ctx context.Context, eventID string, status delivery.Status, limit int) ([]*delivery.Delivery, error)
	Retry(ctx context.Context, id string) (*delivery.Delivery, error)
}

// Server wires the admin endpoints onto a ServeMux.
type Server struct {
	dispatcher Dispatcher
	deliveries DeliveryStore
	logger     *logging.Logger
}

func NewServer(dispatcher Dispatcher, deliveries DeliveryStore, logger *logging.Logger) *Server {
	return &Server{
		dispatcher: dispatcher,
		deliveries: deliveries,
		logger:     logger,
	}
}

// Register attaches the /v1 routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/ping", s.handlePing)
	mux.HandleFunc("POST /v1/events", s.handlePublishEvent)
	mux.HandleFunc("GET /v1/deliveries", s.handleListDeliveries)
	mux.HandleFunc("GET /v1/deliveries/{id}", s.handleGetDelivery)
	mux.HandleFunc("POST /v1/deliveries/{id}/retry", s.handleRetryDelivery)
}

type publishRequest struct {
	EventType string          `json:"event_type"`
	EventID   string          `json:"event_id"`
	Payload   json.RawMessage `json:"payload"`
}

type publishResponse struct {
	EventID string `json:"event_id"`
	Staged  int    `json:"staged"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "api.publish_event")
	defer span.End()

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.EventType == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "event_type is required"})
		return
	}
	if len(req.Payload) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "payload is required"})
		return
	}
	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("event_type", req.EventType),
	)

	staged, err := s.dispatcher.Dispatch(ctx, req.EventType, req.EventID, req.Payload)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		s.logger.WithContext(ctx).WithEvent(req.EventID).WithError(err).Error("dispatch failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "dispatch failed"})
		return
	}

	writeJSON(w, http.StatusAccepted, publishResponse{EventID: req.EventID, Staged: staged})
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	d, err := s.deliveries.Get(ctx, id)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "delivery not found"})
			return
		}
		s.logger.WithContext(ctx).WithDelivery(id).WithError(err).Error("get delivery failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	eventID := q.Get("event_id")
	if eventID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "event_id is required"})
		return
	}

	var status delivery.Status
	if v := q.Get("status"); v != "" {
		status = delivery.Status(v)
		switch status {
		case delivery.StatusPending, delivery.StatusRetrying, delivery.StatusDelivered, delivery.StatusFailed:
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status"})
			return
		}
	}

	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	ds, err := s.deliveries.ListByEvent(ctx, eventID, status, limit)
	if err != nil {
		s.logger.WithContext(ctx).WithEvent(eventID).WithError(err).Error("list deliveries failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "list failed"})
		return
	}
	if ds == nil {
		ds = []*delivery.Delivery{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": ds})
}

func (s *Server) handleRetryDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "api.retry_delivery")
	defer span.End()

	id := r.PathValue("id")
	span.SetAttributes(attribute.String("delivery_id", id))

	d, err := s.deliveries.Retry(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, delivery.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "delivery not found"})
		return
	case errors.Is(err, delivery.ErrRetryExhausted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "retry budget exhausted"})
		return
	case errors.Is(err, delivery.ErrRetryNotAllowed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "delivery is not retryable in its current status"})
		return
	default:
		tracing.SetSpanError(ctx, err)
		s.logger.WithContext(ctx).WithDelivery(id).WithError(err).Error("manual retry failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "retry failed"})
		return
	}

	s.logger.WithContext(ctx).WithDelivery(id).Info("manual retry requested")
	writeJSON(w, http.StatusOK, d)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
