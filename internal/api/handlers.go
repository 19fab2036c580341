// internal/api/handlers.go
package api

import (
	"encoding/json"
	"io"
	"net/http"

	stderrors "pizzahost-workers/internal/common/errors"
	"pizzahost-workers/internal/common/validation"
	"pizzahost-workers/internal/dispatch"
	"pizzahost-workers/internal/store"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

// orderNotifySchema validates the order-placed trigger payload.
var orderNotifySchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"orderId": {Type: "string", MinLength: intPtr(1)},
		"customer": {
			Type: "object",
			Properties: map[string]validation.Property{
				"name":  {Type: "string"},
				"email": {Type: "string"},
				"phone": {Type: "string"},
			},
		},
		"deliveryAddress": {
			Type: "object",
			Properties: map[string]validation.Property{
				"street":  {Type: "string"},
				"city":    {Type: "string"},
				"state":   {Type: "string"},
				"zipCode": {Type: "string"},
			},
		},
		"items": {
			Type: "array",
			Items: &validation.Property{
				Type: "object",
				Properties: map[string]validation.Property{
					"name":     {Type: "string"},
					"size":     {Type: "string"},
					"quantity": {Type: "number", Minimum: floatPtr(1)},
					"price":    {Type: "number", Minimum: floatPtr(0)},
				},
				Required: []string{"name", "quantity", "price"},
			},
		},
		"totalPrice":    {Type: "number", Minimum: floatPtr(0)},
		"paymentMethod": {Type: "string"},
		"instructions":  {Type: "string"},
	},
	Required:             []string{"orderId", "customer", "items", "totalPrice"},
	AdditionalProperties: true,
}

// subscribeSchema validates a browser push subscription.
var subscribeSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"endpoint": {Type: "string", MinLength: intPtr(1), Pattern: strPtr(`^https://`)},
		"keys": {
			Type: "object",
			Properties: map[string]validation.Property{
				"p256dh": {Type: "string", MinLength: intPtr(1)},
				"auth":   {Type: "string", MinLength: intPtr(1)},
			},
			Required: []string{"p256dh", "auth"},
		},
	},
	Required:             []string{"endpoint", "keys"},
	AdditionalProperties: true,
}

var unsubscribeSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"endpoint": {Type: "string", MinLength: intPtr(1)},
	},
	Required:             []string{"endpoint"},
	AdditionalProperties: true,
}

type orderNotifyRequest struct {
	OrderID         string                `json:"orderId"`
	Customer        store.Customer        `json:"customer"`
	DeliveryAddress store.DeliveryAddress `json:"deliveryAddress"`
	Items           []store.OrderItem     `json:"items"`
	TotalPrice      float64               `json:"totalPrice"`
	PaymentMethod   string                `json:"paymentMethod"`
	Instructions    string                `json:"instructions"`
}

// decodeAndValidate reads the body once, checks it against the schema and
// decodes it into dst.
func decodeAndValidate(r *http.Request, schema validation.JSONSchema, dst interface{}) *stderrors.StandardError {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return stderrors.NewValidationFailedError("failed to read request body")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return stderrors.NewValidationFailedError("request body must be a JSON object")
	}

	if result := validation.ValidateInput(raw, schema); !result.Valid {
		return stderrors.NewValidationFailedError(result.Summary())
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return stderrors.NewValidationFailedError("request body does not match expected shape")
	}
	return nil
}

// handleOrderNotify is the fire-and-forget trigger from the order service. A
// failed record write is logged and reported in the body, but the response is
// still 201: notification problems never fail order creation.
func (s *Server) handleOrderNotify(w http.ResponseWriter, r *http.Request) {
	var req orderNotifyRequest
	if stdErr := decodeAndValidate(r, orderNotifySchema, &req); stdErr != nil {
		s.respondError(w, http.StatusBadRequest, stdErr)
		return
	}

	err := s.orchestrator.NotifyOrderPlaced(r.Context(), dispatch.PlacedOrder{
		OrderID:         req.OrderID,
		Customer:        req.Customer,
		DeliveryAddress: req.DeliveryAddress,
		Items:           req.Items,
		TotalPrice:      req.TotalPrice,
		PaymentMethod:   req.PaymentMethod,
		Instructions:    req.Instructions,
	})

	response := map[string]interface{}{
		"success":        true,
		"notificationId": req.OrderID,
	}
	if err != nil {
		response["recordStored"] = false
	}

	s.respondJSON(w, http.StatusCreated, response)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var sub store.PushSubscription
	if stdErr := decodeAndValidate(r, subscribeSchema, &sub); stdErr != nil {
		s.respondError(w, http.StatusBadRequest, stdErr)
		return
	}

	if err := s.registry.Add(r.Context(), sub); err != nil {
		s.logger.Error("failed to store push subscription", map[string]interface{}{
			"error": err.Error(),
		})
		s.respondError(w, http.StatusInternalServerError, stderrors.NewNotificationStoreFailedError(err))
		return
	}

	s.logger.Info("push subscription registered", map[string]interface{}{
		"endpoint": sub.Endpoint,
	})
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if stdErr := decodeAndValidate(r, unsubscribeSchema, &req); stdErr != nil {
		s.respondError(w, http.StatusBadRequest, stdErr)
		return
	}

	if err := s.registry.Remove(r.Context(), req.Endpoint); err != nil {
		s.logger.Error("failed to remove push subscription", map[string]interface{}{
			"error": err.Error(),
		})
		s.respondError(w, http.StatusInternalServerError, stderrors.NewNotificationStoreFailedError(err))
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	records, err := s.notifications.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list notifications", map[string]interface{}{
			"error": err.Error(),
		})
		s.respondError(w, http.StatusInternalServerError, stderrors.NewNotificationStoreFailedError(err))
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": records,
		"count":         len(records),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, err := s.notifications.MarkRead(r.Context(), id)
	if err != nil {
		if stderrors.IsCode(err, stderrors.ErrCodeNotificationNotFound) {
			s.respondError(w, http.StatusNotFound, err.(*stderrors.StandardError))
			return
		}
		s.logger.Error("failed to mark notification read", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
		s.respondError(w, http.StatusInternalServerError, stderrors.NewNotificationStoreFailedError(err))
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"notification": record,
	})
}
