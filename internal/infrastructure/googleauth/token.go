package googleauth

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TokenSource serves OAuth bearer tokens from a token file on disk.
//
// Token refresh is handled outside this process (the token file is
// rewritten by the credential helper); the source re-reads the file
// whenever its cached token expires.
type TokenSource struct {
	path string

	mu     sync.Mutex
	token  string
	expiry time.Time
}

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// NewTokenSource creates a token source over the given token file.
func NewTokenSource(path string) *TokenSource {
	return &TokenSource{path: path}
}

// Token returns a bearer token, re-reading the file when the cached one
// has expired.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiry.IsZero() || time.Now().Before(s.expiry.Add(-time.Minute))) {
		return s.token, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("failed to parse token file: %w", err)
	}
	if tf.AccessToken == "" {
		return "", fmt.Errorf("token file has no access token")
	}

	s.token = tf.AccessToken
	s.expiry = tf.Expiry
	return s.token, nil
}
