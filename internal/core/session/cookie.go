package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// MinSecretLength is the minimum session secret size accepted for HMAC signing
const MinSecretLength = 32 // bytes

// CookiePolicy holds the fixed attributes of the session cookie.
// It is decided once at startup, never per request.
type CookiePolicy struct {
	Name     string
	Domain   string
	MaxAge   time.Duration
	SameSite http.SameSite
	Secure   bool
}

// CookieCodec signs session ids into cookie values and verifies them on the way back
type CookieCodec struct {
	sc     *securecookie.SecureCookie
	policy CookiePolicy
}

// NewCookieCodec creates a codec that signs with secret
func NewCookieCodec(secret []byte, policy CookiePolicy) (*CookieCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if policy.Name == "" {
		return nil, errors.New("cookie name is required")
	}

	sc := securecookie.New(secret, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(policy.MaxAge.Seconds()))

	return &CookieCodec{sc: sc, policy: policy}, nil
}

// Name returns the cookie name
func (c *CookieCodec) Name() string {
	return c.policy.Name
}

func (c *CookieCodec) options(maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		Domain:   c.policy.Domain,
		MaxAge:   maxAge,
		Secure:   c.policy.Secure,
		HttpOnly: true,
		SameSite: c.policy.SameSite,
	}
}

// Encode builds the Set-Cookie value carrying the signed session id
func (c *CookieCodec) Encode(id string) (*http.Cookie, error) {
	value, err := c.sc.Encode(c.policy.Name, id)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return sessions.NewCookie(c.policy.Name, value, c.options(int(c.policy.MaxAge.Seconds()))), nil
}

// Expired builds a cookie that clears the session cookie in the browser
func (c *CookieCodec) Expired() *http.Cookie {
	return sessions.NewCookie(c.policy.Name, "", c.options(-1))
}

// Decode extracts and verifies the session id from the request.
// It returns ErrInvalidCookie when the cookie is absent, tampered or malformed.
func (c *CookieCodec) Decode(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.policy.Name)
	if err != nil || cookie.Value == "" {
		return "", ErrInvalidCookie
	}

	var id string
	if err := c.sc.Decode(c.policy.Name, cookie.Value, &id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if !ValidID(id) {
		return "", ErrInvalidCookie
	}
	return id, nil
}
