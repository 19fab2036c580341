// Package api exposes the notification pipeline over HTTP: the order-placed
// trigger, push subscription management and the staff notification viewer
// endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	stderrors "pizzahost-workers/internal/common/errors"
	"pizzahost-workers/internal/common/logger"
	"pizzahost-workers/internal/dispatch"
	"pizzahost-workers/internal/store"
)

// Server wires the HTTP surface to the stores and the orchestrator.
type Server struct {
	orchestrator  *dispatch.Orchestrator
	notifications *store.NotificationStore
	registry      *store.SubscriptionRegistry
	pushPublicKey string
	pinger        Pinger
	logger        logger.Logger
}

// Pinger is the health-check view of the backing store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewServer(orchestrator *dispatch.Orchestrator, notifications *store.NotificationStore, registry *store.SubscriptionRegistry, pushPublicKey string, pinger Pinger, log logger.Logger) *Server {
	return &Server{
		orchestrator:  orchestrator,
		notifications: notifications,
		registry:      registry,
		pushPublicKey: pushPublicKey,
		pinger:        pinger,
		logger:        log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/orders/notify", s.handleOrderNotify)
	mux.HandleFunc("POST /api/subscribe", s.handleSubscribe)
	mux.HandleFunc("POST /api/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("PUT /api/notifications/{id}/read", s.handleMarkRead)
	mux.HandleFunc("GET /api/push/public-key", s.handlePushPublicKey)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePushPublicKey(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"publicKey": s.pushPublicKey,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, stdErr *stderrors.StandardError) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": stdErr,
	})
}
