package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mshogin/assistant/internal/domain/models"
)

// chatClient issues non-streaming chat completion requests against an
// OpenAI-compatible API and parses strict-JSON answers. Both concrete
// providers delegate their language understanding to it.
type chatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one system+user exchange and returns the raw assistant
// message content.
func (c *chatClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("provider API error (status %d): %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

const intentSystemPrompt = `You classify a user message into exactly one intent:
send_email, schedule_meeting, check_calendar, find_contact, check_free_slots, unknown.
Reply with strict JSON only: {"intent": "<intent>", "confidence": <0..1>}`

// classifyIntent asks the model for an intent. A malformed or
// out-of-vocabulary answer is a decline, not an error: the local
// cascade takes over.
func (c *chatClient) classifyIntent(ctx context.Context, message string) (*models.IntentResult, error) {
	content, err := c.complete(ctx, intentSystemPrompt, message)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &wire); err != nil {
		return nil, nil
	}

	intent := models.Intent(wire.Intent)
	switch intent {
	case models.IntentSendEmail, models.IntentScheduleMeeting, models.IntentCheckCalendar,
		models.IntentFindContact, models.IntentCheckFreeSlots, models.IntentUnknown:
		return &models.IntentResult{Intent: intent, Confidence: wire.Confidence}, nil
	default:
		return nil, nil
	}
}

const entitySystemPrompt = `You extract structured fields from a user message.
Reply with strict JSON only, omitting fields that are absent:
{"person": ["..."], "date": "YYYY-MM-DD or the original phrase",
"time": "HH:MM or the original phrase", "duration": <minutes>,
"email": ["..."], "subject": "...", "body": "...", "location": "..."}`

// extractEntities asks the model for an entity bag. Date and time come
// back as text; normalization happens downstream.
func (c *chatClient) extractEntities(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error) {
	user := message
	if intent != models.IntentUnknown && intent != "" {
		user = fmt.Sprintf("Intent: %s\nMessage: %s", intent, message)
	}

	content, err := c.complete(ctx, entitySystemPrompt, user)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Person   []string `json:"person"`
		Date     string   `json:"date"`
		Time     string   `json:"time"`
		Duration int      `json:"duration"`
		Email    []string `json:"email"`
		Subject  string   `json:"subject"`
		Body     string   `json:"body"`
		Location string   `json:"location"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &wire); err != nil {
		return nil, nil
	}

	bag := &models.EntityBag{
		Person:   wire.Person,
		DateText: wire.Date,
		TimeText: wire.Time,
		Duration: wire.Duration,
		Email:    wire.Email,
		Subject:  wire.Subject,
		Body:     wire.Body,
		Location: wire.Location,
	}
	if bag.IsEmpty() {
		return nil, nil
	}
	return bag, nil
}

// extractJSON trims code fences and surrounding prose so a slightly
// chatty model answer still parses.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return trimmed[start : end+1]
		}
	}
	return trimmed
}
