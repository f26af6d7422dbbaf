package discogs

import (
	"context"
	"net/http"
	"sync"

	"github.com/dghubble/oauth1"
)

// Credential authenticates outgoing requests.
type Credential interface {
	// Name identifies the credential kind in logs.
	Name() string
	// Doer wraps base so that every request it sends is authenticated.
	Doer(base HTTPDoer) HTTPDoer
	// Redacted is a log-safe rendering of the secret.
	Redacted() string
}

// TokenCredential is a Discogs personal access token.
type TokenCredential struct {
	Token string
}

// Name implements Credential.
func (TokenCredential) Name() string { return "token" }

// Redacted implements Credential.
func (c TokenCredential) Redacted() string { return redact(c.Token) }

// Doer implements Credential.
func (c TokenCredential) Doer(base HTTPDoer) HTTPDoer {
	return tokenDoer{base: base, token: c.Token}
}

type tokenDoer struct {
	base  HTTPDoer
	token string
}

func (d tokenDoer) Do(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Discogs token="+d.token)
	return d.base.Do(req)
}

// OAuthCredential is a connected OAuth1 session. Requests are HMAC-SHA1 signed.
type OAuthCredential struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Name implements Credential.
func (OAuthCredential) Name() string { return "oauth" }

// Redacted implements Credential.
func (c OAuthCredential) Redacted() string { return redact(c.Token) }

// Doer implements Credential.
func (c OAuthCredential) Doer(base HTTPDoer) HTTPDoer {
	config := oauth1.NewConfig(c.ConsumerKey, c.ConsumerSecret)
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, &http.Client{
		Transport: doerTransport{base: base},
	})
	return config.Client(ctx, oauth1.NewToken(c.Token, c.TokenSecret))
}

// doerTransport lets the oauth1 transport sign requests on top of any HTTPDoer.
type doerTransport struct {
	base HTTPDoer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.Do(req)
}

// Session holds the credentials available to a client and picks one per request:
// a connected OAuth session first, then the static token.
type Session struct {
	mu    sync.RWMutex
	token string
	oauth *OAuthCredential
}

// NewSession creates a session with an optional static token.
func NewSession(token string) *Session {
	return &Session{token: token}
}

// SetToken replaces the static token. An empty token removes it.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Connect activates an OAuth session.
func (s *Session) Connect(cred OAuthCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauth = &cred
}

// Disconnect drops the OAuth session, falling back to the static token.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauth = nil
}

// Connected reports whether an OAuth session is active.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oauth != nil
}

// Current returns the credential to use for the next request, or nil when
// Discogs access is disabled.
func (s *Session) Current() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.oauth != nil {
		return *s.oauth
	}
	if s.token != "" {
		return TokenCredential{Token: s.token}
	}
	return nil
}

func redact(secret string) string {
	runes := []rune(secret)
	if len(runes) <= 4 {
		return "…"
	}
	return string(runes[:4]) + "…"
}
