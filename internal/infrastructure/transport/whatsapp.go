package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mshogin/assistant/internal/infrastructure/config"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

// WhatsAppClient implements the Transport boundary against the WhatsApp
// Business Cloud API.
type WhatsAppClient struct {
	baseURL       string
	apiVersion    string
	phoneNumberID string
	accessToken   string
	httpClient    *http.Client
	logger        *logging.StructuredLogger
}

// NewWhatsAppClient creates a WhatsApp Cloud API client.
func NewWhatsAppClient(cfg config.WhatsAppConfig, logger *logging.StructuredLogger) *WhatsAppClient {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &WhatsAppClient{
		baseURL:       cfg.BaseURL,
		apiVersion:    cfg.APIVersion,
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             outboundText `json:"text"`
}

type outboundText struct {
	Body string `json:"body"`
}

// Deliver sends one text message to the recipient.
func (c *WhatsAppClient) Deliver(ctx context.Context, recipientID, text string) error {
	payload, err := json.Marshal(outboundMessage{
		MessagingProduct: "whatsapp",
		To:               recipientID,
		Type:             "text",
		Text:             outboundText{Body: text},
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API error (status %d): %s", resp.StatusCode, string(data))
	}
	return nil
}

// InboundMessage is one text message received through the webhook.
type InboundMessage struct {
	SenderID   string
	Text       string
	ReceivedAt time.Time
}

// webhookPayload mirrors the Cloud API webhook notification shape down
// to the fields this service consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts every inbound text message from a webhook
// notification body. Non-text messages (media, reactions, status
// updates) are skipped.
func ParseWebhook(body []byte) ([]InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	var inbound []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				receivedAt := time.Now()
				if unix, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					receivedAt = time.Unix(unix, 0)
				}
				inbound = append(inbound, InboundMessage{
					SenderID:   msg.From,
					Text:       msg.Text.Body,
					ReceivedAt: receivedAt,
				})
			}
		}
	}
	return inbound, nil
}
