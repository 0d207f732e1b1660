package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// jwksTTL is how long a fetched key set is trusted before refetching. Key
// rotation at the IdP takes effect within this window.
const jwksTTL = 1 * time.Hour

// KeySource fetches and caches the IdP's JWKS. A single source serves one
// JWKS URL; the service only ever talks to one identity provider.
type KeySource struct {
	url    string
	client *http.Client

	mu      sync.RWMutex
	keys    jwk.Set
	expires time.Time
}

// NewKeySource creates a key source for the given JWKS URL.
func NewKeySource(jwksURL string) *KeySource {
	return &KeySource{
		url:    jwksURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Keys returns the cached key set, fetching a fresh one when the cache is
// empty or stale. Concurrent callers during a refresh may fetch redundantly;
// the last writer wins and all of them get a valid set.
func (s *KeySource) Keys(ctx context.Context) (jwk.Set, error) {
	s.mu.RLock()
	if s.keys != nil && time.Now().Before(s.expires) {
		keys := s.keys
		s.mu.RUnlock()
		return keys, nil
	}
	s.mu.RUnlock()

	keys, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	s.mu.Lock()
	s.keys = keys
	s.expires = time.Now().Add(jwksTTL)
	s.mu.Unlock()

	return keys, nil
}

func (s *KeySource) fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	return jwk.Parse(body)
}
