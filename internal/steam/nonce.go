package steam

import (
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

var (
	ErrNonceReplayed = errors.New("openid nonce already used")
	ErrNonceStale    = errors.New("openid nonce outside accepted window")
)

// nonceTimestampLen is the length of the RFC 3339 UTC prefix every
// openid.response_nonce starts with, e.g. 2005-05-15T17:11:51Z
const nonceTimestampLen = 20

// NonceStore rejects replayed or stale positive assertions.
// Seen nonces live in a ttlcache so memory stays bounded by the acceptance window.
type NonceStore struct {
	cache  *ttlcache.Cache[string, struct{}]
	now    func() time.Time
	window time.Duration
}

// NewNonceStore creates a nonce store accepting assertions issued within window of now
func NewNonceStore(window time.Duration) *NonceStore {
	if window <= 0 {
		window = time.Minute
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](2*window),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go cache.Start()

	return &NonceStore{
		cache:  cache,
		window: window,
		now:    time.Now,
	}
}

// Accept implements openid.NonceStore
func (s *NonceStore) Accept(endpoint, nonce string) error {
	if len(nonce) < nonceTimestampLen {
		return fmt.Errorf("malformed openid nonce %q", nonce)
	}

	issued, err := time.Parse(time.RFC3339, nonce[:nonceTimestampLen])
	if err != nil {
		return fmt.Errorf("malformed openid nonce timestamp: %w", err)
	}

	now := s.now()
	if issued.Before(now.Add(-s.window)) || issued.After(now.Add(s.window)) {
		return ErrNonceStale
	}

	if _, found := s.cache.GetOrSet(endpoint+"|"+nonce, struct{}{}); found {
		return ErrNonceReplayed
	}
	return nil
}

// Len returns the number of remembered nonces
func (s *NonceStore) Len() int {
	return s.cache.Len()
}

// Close stops the expiry goroutine
func (s *NonceStore) Close() {
	s.cache.Stop()
}
