package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/infrastructure/config"
)

// OllamaProvider implements the LanguageProvider interface against a
// local Ollama server via its OpenAI-compatible endpoint.
type OllamaProvider struct {
	chat    chatClient
	rootURL string
}

// NewOllamaProvider creates a new Ollama provider instance.
func NewOllamaProvider(cfg config.ProviderConfig) services.LanguageProvider {
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	rootURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	return &OllamaProvider{
		rootURL: rootURL,
		chat: chatClient{
			baseURL: rootURL + "/v1",
			model:   model,
			httpClient: &http.Client{
				Timeout: cfg.Timeout,
				Transport: &http.Transport{
					MaxIdleConns:        10,
					MaxIdleConnsPerHost: 10,
					IdleConnTimeout:     90 * time.Second,
				},
			},
		},
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// ClassifyIntent asks the model to classify a message.
func (p *OllamaProvider) ClassifyIntent(ctx context.Context, message string) (*models.IntentResult, error) {
	return p.chat.classifyIntent(ctx, message)
}

// ExtractEntities asks the model to extract entities from a message.
func (p *OllamaProvider) ExtractEntities(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error) {
	return p.chat.extractEntities(ctx, message, intent)
}

// CheckHealth verifies the Ollama server is reachable.
func (p *OllamaProvider) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.rootURL+"/api/tags", nil)
	if err != nil {
		return err
	}

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
