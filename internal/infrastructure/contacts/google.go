package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/infrastructure/googleauth"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

const (
	peopleBaseURL = "https://people.googleapis.com/v1"
	personFields  = "names,emailAddresses,phoneNumbers,organizations,addresses"
)

// GooglePeople implements the ContactSource boundary against the Google
// People REST API.
type GooglePeople struct {
	baseURL    string
	tokens     *googleauth.TokenSource
	httpClient *http.Client
	logger     *logging.StructuredLogger
}

// NewGooglePeople creates a People API contact source.
func NewGooglePeople(tokens *googleauth.TokenSource, logger *logging.StructuredLogger) *GooglePeople {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &GooglePeople{
		baseURL:    peopleBaseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type wirePerson struct {
	ResourceName   string `json:"resourceName"`
	Names          []struct {
		DisplayName string `json:"displayName"`
	} `json:"names"`
	EmailAddresses []struct {
		Value string `json:"value"`
	} `json:"emailAddresses"`
	PhoneNumbers []struct {
		Value string `json:"value"`
	} `json:"phoneNumbers"`
	Organizations []struct {
		Name string `json:"name"`
	} `json:"organizations"`
	Addresses []struct {
		FormattedValue string `json:"formattedValue"`
	} `json:"addresses"`
}

type wireSearchResponse struct {
	Results []struct {
		Person wirePerson `json:"person"`
	} `json:"results"`
}

type wireConnectionsResponse struct {
	Connections   []wirePerson `json:"connections"`
	NextPageToken string       `json:"nextPageToken"`
}

// FindByName returns the best match for a name, or nil when not found.
func (g *GooglePeople) FindByName(ctx context.Context, name string) (*models.ContactRef, error) {
	contacts, err := g.Search(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// Search returns every contact matching the query.
func (g *GooglePeople) Search(ctx context.Context, query string) ([]models.ContactRef, error) {
	endpoint := fmt.Sprintf("%s/people:searchContacts?query=%s&readMask=%s",
		g.baseURL, url.QueryEscape(query), personFields)

	data, err := g.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed wireSearchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	contacts := make([]models.ContactRef, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		if ref := toContactRef(result.Person); ref.Name != "" {
			contacts = append(contacts, ref)
		}
	}
	return contacts, nil
}

// ListPage fetches one page of the user's connections, for the local
// cache synchronizer. pageToken is empty for the first page.
func (g *GooglePeople) ListPage(ctx context.Context, pageToken string) ([]models.ContactRef, string, error) {
	query := url.Values{}
	query.Set("personFields", personFields)
	query.Set("pageSize", "200")
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	endpoint := fmt.Sprintf("%s/people/me/connections?%s", g.baseURL, query.Encode())

	data, err := g.get(ctx, endpoint)
	if err != nil {
		return nil, "", err
	}

	var parsed wireConnectionsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to decode connections response: %w", err)
	}

	contacts := make([]models.ContactRef, 0, len(parsed.Connections))
	for _, person := range parsed.Connections {
		if ref := toContactRef(person); ref.Name != "" {
			contacts = append(contacts, ref)
		}
	}
	return contacts, parsed.NextPageToken, nil
}

func (g *GooglePeople) get(ctx context.Context, endpoint string) ([]byte, error) {
	token, err := g.tokens.Token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("people API error: status %d", resp.StatusCode)
	}
	return data, nil
}

func toContactRef(person wirePerson) models.ContactRef {
	ref := models.ContactRef{}
	if len(person.Names) > 0 {
		ref.Name = person.Names[0].DisplayName
	}
	if len(person.EmailAddresses) > 0 {
		ref.Email = person.EmailAddresses[0].Value
	}
	if len(person.PhoneNumbers) > 0 {
		ref.Phone = person.PhoneNumbers[0].Value
	}
	if len(person.Organizations) > 0 {
		ref.Organization = person.Organizations[0].Name
	}
	if len(person.Addresses) > 0 {
		ref.Address = person.Addresses[0].FormattedValue
	}
	return ref
}
