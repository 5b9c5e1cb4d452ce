package steam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohcop/openid-go"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/identity"
)

const testSteamID = "76561198000000000"

type fakeOpenID struct {
	redirectErr error
	verifyErr   error
	claimedID   string
	verifiedURI string
	block       chan struct{}
	panicWith   string
}

func (f *fakeOpenID) RedirectURL(id, callbackURL, realm string) (string, error) {
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	if f.redirectErr != nil {
		return "", f.redirectErr
	}
	q := url.Values{}
	q.Set("openid.return_to", callbackURL)
	q.Set("openid.realm", realm)
	return id + "/login?" + q.Encode(), nil
}

func (f *fakeOpenID) Verify(uri string, _ openid.DiscoveryCache, _ openid.NonceStore) (string, error) {
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	if f.block != nil {
		<-f.block
	}
	f.verifiedURI = uri
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	return f.claimedID, nil
}

func newSteamAPI(t *testing.T, status int, players []map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ISteamUser/GetPlayerSummaries/v0002/", r.URL.Path)
		assert.Equal(t, "test-api-key", r.URL.Query().Get("key"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		body := map[string]any{"response": map[string]any{"players": players}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestVerifier(t *testing.T, apiURL string, fake *fakeOpenID) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{
		ReturnURL: "https://api.example.com/auth/steam/return",
		Realm:     "https://api.example.com",
		APIKey:    "test-api-key",
		APIURL:    apiURL,
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(v.Close)
	v.openid = fake
	return v
}

func callbackRequest(params map[string]string) *http.Request {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return httptest.NewRequest(http.MethodGet, "http://internal:5000/auth/steam/return?"+q.Encode(), nil)
}

func positiveAssertion() map[string]string {
	return map[string]string{
		"openid.mode":       "id_res",
		"openid.claimed_id": "https://steamcommunity.com/openid/id/" + testSteamID,
		"openid.identity":   "https://steamcommunity.com/openid/id/" + testSteamID,
		"openid.return_to":  "https://api.example.com/auth/steam/return",
		"openid.sig":        "c2lnbmF0dXJl",
	}
}

func requireFailure(t *testing.T, err error, kind identity.FailureKind) {
	t.Helper()
	var f *identity.AuthFailure
	require.True(t, errors.As(err, &f), "expected *AuthFailure, got %T", err)
	assert.Equal(t, kind, f.Kind)
}

func TestNewVerifier_RequiresConfig(t *testing.T) {
	_, err := NewVerifier(Config{Realm: "https://api.example.com", APIKey: "k"})
	assert.Error(t, err)

	_, err = NewVerifier(Config{ReturnURL: "not a url", Realm: "https://api.example.com", APIKey: "k"})
	assert.Error(t, err)
}

func TestBeginHandshake(t *testing.T) {
	v := newTestVerifier(t, "http://unused", &fakeOpenID{})

	redirect, err := v.BeginHandshake(context.Background(), httptest.NewRequest(http.MethodGet, "/auth/steam", nil))
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "steamcommunity.com", u.Host)
	assert.Equal(t, "https://api.example.com/auth/steam/return", u.Query().Get("openid.return_to"))
	assert.Equal(t, "https://api.example.com", u.Query().Get("openid.realm"))
}

func TestBeginHandshake_DiscoveryFailure(t *testing.T) {
	v := newTestVerifier(t, "http://unused", &fakeOpenID{redirectErr: errors.New("no such host")})

	_, err := v.BeginHandshake(context.Background(), httptest.NewRequest(http.MethodGet, "/auth/steam", nil))
	assert.Error(t, err)
}

func TestCompleteHandshake_Success(t *testing.T) {
	api := newSteamAPI(t, http.StatusOK, []map[string]any{{
		"steamid":     testSteamID,
		"personaname": "gaben",
		"profileurl":  "https://steamcommunity.com/id/gaben/",
		"avatar":      "https://avatars.example/gaben.jpg",
	}})
	fake := &fakeOpenID{claimedID: "https://steamcommunity.com/openid/id/" + testSteamID}
	v := newTestVerifier(t, api.URL, fake)

	got, err := v.CompleteHandshake(context.Background(), callbackRequest(positiveAssertion()))
	require.NoError(t, err)

	assert.Equal(t, ProviderName, got.Provider)
	assert.Equal(t, testSteamID, got.ExternalID)
	assert.Equal(t, "gaben", got.Name)
	assert.Equal(t, "https://steamcommunity.com/id/gaben/", got.ProfileURI)
	assert.Equal(t, "https://avatars.example/gaben.jpg", got.Profile["avatar"])

	verified, err := url.Parse(fake.verifiedURI)
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", verified.Host, "verification must use the configured return URL")
	assert.Equal(t, "id_res", verified.Query().Get("openid.mode"))
}

func TestCompleteHandshake_Failures(t *testing.T) {
	api := newSteamAPI(t, http.StatusOK, []map[string]any{{"steamid": testSteamID}})

	tests := []struct {
		params map[string]string
		fake   *fakeOpenID
		name   string
		want   identity.FailureKind
	}{
		{
			name:   "missing mode",
			params: map[string]string{},
			fake:   &fakeOpenID{},
			want:   identity.MalformedCallback,
		},
		{
			name:   "unknown mode",
			params: map[string]string{"openid.mode": "checkid_setup"},
			fake:   &fakeOpenID{},
			want:   identity.MalformedCallback,
		},
		{
			name:   "user cancelled",
			params: map[string]string{"openid.mode": "cancel"},
			fake:   &fakeOpenID{},
			want:   identity.ProviderRejected,
		},
		{
			name:   "missing signature",
			params: map[string]string{"openid.mode": "id_res", "openid.claimed_id": "x", "openid.return_to": "y"},
			fake:   &fakeOpenID{},
			want:   identity.MalformedCallback,
		},
		{
			name:   "signature rejected",
			params: positiveAssertion(),
			fake:   &fakeOpenID{verifyErr: errors.New("openid: invalid signature")},
			want:   identity.ProviderRejected,
		},
		{
			name:   "provider unreachable",
			params: positiveAssertion(),
			fake:   &fakeOpenID{verifyErr: &url.Error{Op: "Post", URL: "https://steamcommunity.com/openid/login", Err: errors.New("connection refused")}},
			want:   identity.NetworkError,
		},
		{
			name:   "foreign claimed id",
			params: positiveAssertion(),
			fake:   &fakeOpenID{claimedID: "https://evil.example.com/openid/id/" + testSteamID},
			want:   identity.ProviderRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t, api.URL, tt.fake)

			got, err := v.CompleteHandshake(context.Background(), callbackRequest(tt.params))
			assert.Nil(t, got)
			requireFailure(t, err, tt.want)
		})
	}
}

func TestCompleteHandshake_ProfileFailures(t *testing.T) {
	claimed := "https://steamcommunity.com/openid/id/" + testSteamID

	t.Run("api error is a network failure", func(t *testing.T) {
		api := newSteamAPI(t, http.StatusServiceUnavailable, nil)
		v := newTestVerifier(t, api.URL, &fakeOpenID{claimedID: claimed})

		_, err := v.CompleteHandshake(context.Background(), callbackRequest(positiveAssertion()))
		requireFailure(t, err, identity.NetworkError)
	})

	t.Run("unknown player is rejected", func(t *testing.T) {
		api := newSteamAPI(t, http.StatusOK, []map[string]any{})
		v := newTestVerifier(t, api.URL, &fakeOpenID{claimedID: claimed})

		_, err := v.CompleteHandshake(context.Background(), callbackRequest(positiveAssertion()))
		requireFailure(t, err, identity.ProviderRejected)
	})
}

func TestCompleteHandshake_Timeout(t *testing.T) {
	fake := &fakeOpenID{block: make(chan struct{})}
	defer close(fake.block)

	v := newTestVerifier(t, "http://unused", fake)
	v.cfg.Timeout = 20 * time.Millisecond

	_, err := v.CompleteHandshake(context.Background(), callbackRequest(positiveAssertion()))
	requireFailure(t, err, identity.NetworkError)
}

func TestProviderPanicBecomesError(t *testing.T) {
	v := newTestVerifier(t, "http://unused", &fakeOpenID{panicWith: "xrds parser exploded"})

	_, err := v.BeginHandshake(context.Background(), httptest.NewRequest(http.MethodGet, "/auth/steam", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider call panicked: xrds parser exploded")

	_, err = v.CompleteHandshake(context.Background(), callbackRequest(positiveAssertion()))
	requireFailure(t, err, identity.ProviderRejected)
}

func TestNewVerifier_UsesConfiguredHTTPClient(t *testing.T) {
	client := &http.Client{Timeout: time.Second}
	v, err := NewVerifier(Config{
		HTTPClient: client,
		ReturnURL:  "https://api.example.com/auth/steam/return",
		Realm:      "https://api.example.com",
		APIKey:     "test-api-key",
	})
	require.NoError(t, err)
	t.Cleanup(v.Close)

	lib, ok := v.openid.(libOpenID)
	require.True(t, ok)
	assert.NotNil(t, lib.oid)
	assert.Same(t, client, v.cfg.HTTPClient)
}
