package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
)

// FailureKind classifies why a handshake did not produce a verified identity
type FailureKind int

const (
	ProviderRejected FailureKind = iota + 1
	MalformedCallback
	NetworkError
)

func (k FailureKind) String() string {
	switch k {
	case ProviderRejected:
		return "provider_rejected"
	case MalformedCallback:
		return "malformed_callback"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// AuthFailure is the only error CompleteHandshake returns.
// Err holds the provider detail for logs; it never reaches the client.
type AuthFailure struct {
	Err  error
	Kind FailureKind
}

func (f *AuthFailure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *AuthFailure) Unwrap() error {
	return f.Err
}

// Code is the value placed in the client-facing err query parameter
func (f *AuthFailure) Code() string {
	return f.Kind.String()
}

// Fail builds an AuthFailure
func Fail(kind FailureKind, err error) *AuthFailure {
	return &AuthFailure{Kind: kind, Err: err}
}

// AsFailure converts any handshake error into an AuthFailure.
// Errors that are not already classified are treated as network errors.
func AsFailure(err error) *AuthFailure {
	var f *AuthFailure
	if errors.As(err, &f) {
		return f
	}
	return Fail(NetworkError, err)
}

// VerifiedIdentity is the result of a successful handshake
type VerifiedIdentity struct {
	Profile    map[string]any
	Provider   string
	ExternalID string
	Name       string
	ProfileURI string
}

// SessionIdentity converts the verified result into the session's identity record
func (v *VerifiedIdentity) SessionIdentity() session.Identity {
	return session.Identity{
		Provider:    v.Provider,
		ExternalID:  v.ExternalID,
		DisplayName: v.Name,
		ProfileURI:  v.ProfileURI,
		Raw:         v.Profile,
	}
}

// Verifier wraps one external provider's redirect-based login protocol
type Verifier interface {
	// BeginHandshake returns the provider URL the browser must be redirected to
	BeginHandshake(ctx context.Context, r *http.Request) (string, error)
	// CompleteHandshake verifies the provider callback; any error is an *AuthFailure
	CompleteHandshake(ctx context.Context, r *http.Request) (*VerifiedIdentity, error)
}

// Registry maps provider names (the /auth/{provider} path segment) to verifiers
type Registry struct {
	verifiers map[string]Verifier
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[string]Verifier)}
}

// Register adds a verifier under name; registering the same name twice panics
func (r *Registry) Register(name string, v Verifier) {
	if _, exists := r.verifiers[name]; exists {
		panic(fmt.Sprintf("identity: verifier %q already registered", name))
	}
	r.verifiers[name] = v
}

// Get returns the verifier for name
func (r *Registry) Get(name string) (Verifier, bool) {
	v, ok := r.verifiers[name]
	return v, ok
}

// Names returns the registered provider names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.verifiers))
	for name := range r.verifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
