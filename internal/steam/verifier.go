package steam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/yohcop/openid-go"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/identity"
)

const (
	ProviderName     = "steam"
	DefaultOpenIDURL = "https://steamcommunity.com/openid"
	DefaultAPIURL    = "https://api.steampowered.com"
)

// claimedIDPattern matches the claimed identifier Steam asserts for an account
var claimedIDPattern = regexp.MustCompile(`^https?://steamcommunity\.com/openid/id/(\d{17})$`)

// openIDClient is the slice of openid-go the verifier depends on
type openIDClient interface {
	RedirectURL(id, callbackURL, realm string) (string, error)
	Verify(uri string, cache openid.DiscoveryCache, nonceStore openid.NonceStore) (string, error)
}

// libOpenID binds openid-go to the verifier's HTTP client instead of http.DefaultClient
type libOpenID struct {
	oid *openid.OpenID
}

func (l libOpenID) RedirectURL(id, callbackURL, realm string) (string, error) {
	return l.oid.RedirectURL(id, callbackURL, realm)
}

func (l libOpenID) Verify(uri string, cache openid.DiscoveryCache, nonceStore openid.NonceStore) (string, error) {
	return l.oid.Verify(uri, cache, nonceStore)
}

// Config holds the Steam verifier configuration
type Config struct {
	HTTPClient  *http.Client
	ReturnURL   string
	Realm       string
	APIKey      string
	OpenIDURL   string
	APIURL      string
	Timeout     time.Duration
	NonceWindow time.Duration
}

// Verifier implements identity.Verifier for Steam's OpenID 2.0 endpoint
type Verifier struct {
	openid    openIDClient
	discovery *discoveryCache
	nonces    *NonceStore
	profiles  *ProfileClient
	returnURL *url.URL
	cfg       Config
}

// NewVerifier creates a Steam verifier
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.ReturnURL == "" || cfg.Realm == "" || cfg.APIKey == "" {
		return nil, errors.New("steam: return URL, realm and API key are required")
	}

	returnURL, err := url.Parse(cfg.ReturnURL)
	if err != nil || returnURL.Scheme == "" || returnURL.Host == "" {
		return nil, fmt.Errorf("steam: invalid return URL %q", cfg.ReturnURL)
	}

	if cfg.OpenIDURL == "" {
		cfg.OpenIDURL = DefaultOpenIDURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Verifier{
		openid:    libOpenID{oid: openid.NewOpenID(cfg.HTTPClient)},
		discovery: newDiscoveryCache(discoveryTTL, discoveryCapacity),
		nonces:    NewNonceStore(cfg.NonceWindow),
		profiles:  NewProfileClient(cfg.HTTPClient, cfg.APIURL, cfg.APIKey),
		returnURL: returnURL,
		cfg:       cfg,
	}, nil
}

// Close stops the nonce and discovery caches
func (v *Verifier) Close() {
	v.nonces.Close()
	v.discovery.Close()
}

// BeginHandshake discovers the Steam OpenID endpoint and builds the checkid_setup redirect
func (v *Verifier) BeginHandshake(ctx context.Context, _ *http.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	redirect, err := awaitProvider(ctx, func() (string, error) {
		return v.openid.RedirectURL(v.cfg.OpenIDURL, v.cfg.ReturnURL, v.cfg.Realm)
	})
	if err != nil {
		return "", fmt.Errorf("failed to build steam redirect: %w", err)
	}
	return redirect, nil
}

// CompleteHandshake verifies the positive assertion carried by the callback query and
// loads the player's public profile
func (v *Verifier) CompleteHandshake(ctx context.Context, r *http.Request) (*identity.VerifiedIdentity, error) {
	q := r.URL.Query()

	switch mode := q.Get("openid.mode"); mode {
	case "id_res":
	case "cancel":
		return nil, identity.Fail(identity.ProviderRejected, errors.New("user cancelled at provider"))
	case "error":
		return nil, identity.Fail(identity.ProviderRejected, fmt.Errorf("provider error: %s", q.Get("openid.error")))
	case "":
		return nil, identity.Fail(identity.MalformedCallback, errors.New("missing openid.mode"))
	default:
		return nil, identity.Fail(identity.MalformedCallback, fmt.Errorf("unexpected openid.mode %q", mode))
	}

	if q.Get("openid.claimed_id") == "" || q.Get("openid.sig") == "" || q.Get("openid.return_to") == "" {
		return nil, identity.Fail(identity.MalformedCallback, errors.New("missing assertion fields"))
	}

	// Verify matches return_to against the URL the provider redirected to, which is
	// the configured return URL rather than whatever host a proxy forwarded
	callback := *v.returnURL
	callback.RawQuery = r.URL.RawQuery

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	claimedID, err := awaitProvider(ctx, func() (string, error) {
		return v.openid.Verify(callback.String(), v.discovery, v.nonces)
	})
	if err != nil {
		return nil, classify(err)
	}

	m := claimedIDPattern.FindStringSubmatch(claimedID)
	if m == nil {
		return nil, identity.Fail(identity.ProviderRejected, fmt.Errorf("unexpected claimed id %q", claimedID))
	}
	steamID := m[1]

	player, err := v.profiles.PlayerSummary(ctx, steamID)
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return nil, identity.Fail(identity.ProviderRejected, err)
		}
		return nil, identity.Fail(identity.NetworkError, err)
	}

	name, _ := player["personaname"].(string)
	profileURL, _ := player["profileurl"].(string)

	slog.DebugContext(ctx, "steam assertion verified", "steam_id", steamID)

	return &identity.VerifiedIdentity{
		Provider:   ProviderName,
		ExternalID: steamID,
		Name:       name,
		ProfileURI: profileURL,
		Profile:    player,
	}, nil
}

// classify maps openid-go verification errors onto the failure taxonomy.
// Transport failures are network errors; everything else is a rejected assertion.
func classify(err error) *identity.AuthFailure {
	var (
		uerr   *url.Error
		netErr net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.As(err, &uerr), errors.As(err, &netErr):
		return identity.Fail(identity.NetworkError, err)
	default:
		return identity.Fail(identity.ProviderRejected, err)
	}
}

// awaitProvider runs a blocking provider call that has no context support and stops
// waiting when ctx is done. An abandoned call runs on until the verifier's HTTP client
// times out. A panic in the call is returned as an error.
func awaitProvider(ctx context.Context, call func() (string, error)) (string, error) {
	type result struct {
		err   error
		value string
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("steam provider call panicked", "panic", rec)
				done <- result{err: fmt.Errorf("provider call panicked: %v", rec)}
			}
		}()
		value, err := call()
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
