package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct{}

func (stubVerifier) BeginHandshake(context.Context, *http.Request) (string, error) {
	return "https://provider.example/login", nil
}

func (stubVerifier) CompleteHandshake(context.Context, *http.Request) (*VerifiedIdentity, error) {
	return nil, Fail(ProviderRejected, nil)
}

func TestAuthFailure_Codes(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{ProviderRejected, "provider_rejected"},
		{MalformedCallback, "malformed_callback"},
		{NetworkError, "network_error"},
		{FailureKind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Fail(tt.kind, nil).Code())
		})
	}
}

func TestAuthFailure_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	f := Fail(NetworkError, cause)

	assert.ErrorIs(t, f, cause)
	assert.Equal(t, "network_error: connection refused", f.Error())
}

func TestAsFailure(t *testing.T) {
	t.Run("keeps classified failures", func(t *testing.T) {
		orig := Fail(MalformedCallback, errors.New("missing openid.mode"))
		wrapped := fmt.Errorf("callback: %w", orig)

		assert.Same(t, orig, AsFailure(wrapped))
	})

	t.Run("unclassified errors become network errors", func(t *testing.T) {
		f := AsFailure(errors.New("boom"))
		assert.Equal(t, NetworkError, f.Kind)
	})
}

func TestVerifiedIdentity_SessionIdentity(t *testing.T) {
	v := &VerifiedIdentity{
		Provider:   "steam",
		ExternalID: "76561198000000000",
		Name:       "gaben",
		ProfileURI: "https://steamcommunity.com/id/gaben/",
		Profile:    map[string]any{"personaname": "gaben"},
	}

	id := v.SessionIdentity()
	assert.Equal(t, "steam", id.Provider)
	assert.Equal(t, "76561198000000000", id.ExternalID)
	assert.Equal(t, "gaben", id.DisplayName)
	assert.Equal(t, "https://steamcommunity.com/id/gaben/", id.ProfileURI)
	assert.Equal(t, "gaben", id.Raw["personaname"])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("steam", stubVerifier{})

	v, ok := r.Get("steam")
	require.True(t, ok)
	assert.NotNil(t, v)

	_, ok = r.Get("github")
	assert.False(t, ok)

	assert.Equal(t, []string{"steam"}, r.Names())
	assert.Panics(t, func() { r.Register("steam", stubVerifier{}) })
}
