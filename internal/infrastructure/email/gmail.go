package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/infrastructure/googleauth"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

const gmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// GmailSender implements the EmailSender boundary against the Gmail
// REST API.
type GmailSender struct {
	sendURL    string
	from       string
	tokens     *googleauth.TokenSource
	httpClient *http.Client
	logger     *logging.StructuredLogger
}

// NewGmailSender creates a Gmail sender. from is the authenticated
// account's address, used in the From header.
func NewGmailSender(from string, tokens *googleauth.TokenSource, logger *logging.StructuredLogger) *GmailSender {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &GmailSender{
		sendURL:    gmailSendURL,
		from:       from,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Send delivers one plain-text email. API-level failures are reported
// in the result; transport failures return an error.
func (g *GmailSender) Send(ctx context.Context, to, subject, body string) (*models.SendEmailResult, error) {
	raw := buildMessage(g.from, to, subject, body)

	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(raw),
	})
	if err != nil {
		return nil, err
	}

	token, err := g.tokens.Token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sendURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		g.logger.Error("gmail send failed", fmt.Errorf("status %d", resp.StatusCode), map[string]interface{}{
			"body": string(data),
		})
		return &models.SendEmailResult{
			Success: false,
			Error:   fmt.Sprintf("Gmail API error: status %d", resp.StatusCode),
		}, nil
	}

	return &models.SendEmailResult{Success: true}, nil
}

// buildMessage assembles a minimal RFC 5322 plain-text message.
func buildMessage(from, to, subject, body string) []byte {
	var b bytes.Buffer
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}
