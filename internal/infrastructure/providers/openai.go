package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/infrastructure/config"
)

// OpenAIProvider implements the LanguageProvider interface against the
// OpenAI chat completions API.
type OpenAIProvider struct {
	chat chatClient
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider(cfg config.ProviderConfig) services.LanguageProvider {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		chat: chatClient{
			baseURL: cfg.BaseURL,
			apiKey:  cfg.APIKey,
			model:   model,
			httpClient: &http.Client{
				Timeout: cfg.Timeout,
				Transport: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 10,
					IdleConnTimeout:     90 * time.Second,
				},
			},
		},
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ClassifyIntent asks the model to classify a message.
func (p *OpenAIProvider) ClassifyIntent(ctx context.Context, message string) (*models.IntentResult, error) {
	return p.chat.classifyIntent(ctx, message)
}

// ExtractEntities asks the model to extract entities from a message.
func (p *OpenAIProvider) ExtractEntities(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error) {
	return p.chat.extractEntities(ctx, message, intent)
}

// CheckHealth verifies the provider is operational.
func (p *OpenAIProvider) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.chat.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.chat.apiKey)

	resp, err := p.chat.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}
