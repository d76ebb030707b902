package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appservices "github.com/mshogin/assistant/internal/application/services"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
	"github.com/mshogin/assistant/internal/infrastructure/metrics"
	"github.com/mshogin/assistant/internal/infrastructure/transport"
)

// Handlers wires the HTTP surface: the WhatsApp webhook pair, health
// and metrics.
type Handlers struct {
	engine      *appservices.Engine
	exporter    *metrics.PrometheusExporter
	verifyToken string
	logger      *logging.StructuredLogger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(engine *appservices.Engine, exporter *metrics.PrometheusExporter, verifyToken string, logger *logging.StructuredLogger) *Handlers {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Handlers{
		engine:      engine,
		exporter:    exporter,
		verifyToken: verifyToken,
		logger:      logger,
	}
}

// RegisterRoutes mounts all routes on the router.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/webhook", h.handleWebhookVerify)
	r.Post("/webhook", h.handleWebhookNotify)
	r.Get("/health", h.handleHealth)
	r.Get("/metrics", h.handleMetrics)
}

// handleWebhookVerify answers the Cloud API subscription handshake:
// echo hub.challenge when the verify token matches.
func (h *Handlers) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		h.logger.Warn("webhook verification rejected", map[string]interface{}{
			"mode": mode,
		})
		w.WriteHeader(http.StatusForbidden)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// handleWebhookNotify accepts inbound message notifications. The
// notification is acknowledged immediately; message handling runs
// detached so a slow collaborator never stalls the webhook.
func (h *Handlers) handleWebhookNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	messages, err := transport.ParseWebhook(body)
	if err != nil {
		h.logger.Warn("malformed webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		// Acknowledge anyway: the Cloud API retries on non-2xx and a
		// malformed payload will never parse better on retry.
		w.WriteHeader(http.StatusOK)
		return
	}

	// One goroutine per notification, messages handled in payload
	// order, so a sender's messages are never reordered.
	go func(batch []transport.InboundMessage) {
		for _, msg := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			h.engine.HandleMessage(ctx, msg.SenderID, msg.Text, msg.ReceivedAt)
			cancel()
		}
	}(messages)

	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":             "healthy",
		"open_conversations": h.engine.OpenConversations(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(h.exporter.Export()))
}
