package discogs

import (
	"context"
	"fmt"
	"strings"

	"github.com/dghubble/oauth1"
)

// Discogs OAuth1 endpoints.
const (
	RequestTokenURL = "https://api.discogs.com/oauth/request_token"
	AuthorizeURL    = "https://www.discogs.com/oauth/authorize"
	AccessTokenURL  = "https://api.discogs.com/oauth/access_token"
	// OutOfBandCallback makes Discogs show the verifier code to the user instead
	// of redirecting.
	OutOfBandCallback = "oob"
)

// Authorizer runs the three-legged OAuth1 connect flow.
type Authorizer struct {
	config *oauth1.Config
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*oauth1.Config)

// WithEndpoint overrides the OAuth endpoints.
func WithEndpoint(requestTokenURL, authorizeURL, accessTokenURL string) AuthorizerOption {
	return func(c *oauth1.Config) {
		c.Endpoint = oauth1.Endpoint{
			RequestTokenURL: requestTokenURL,
			AuthorizeURL:    authorizeURL,
			AccessTokenURL:  accessTokenURL,
		}
	}
}

// NewAuthorizer creates an authorizer for the registered consumer application.
func NewAuthorizer(consumerKey, consumerSecret, callbackURL string, opts ...AuthorizerOption) *Authorizer {
	if callbackURL == "" {
		callbackURL = OutOfBandCallback
	}
	config := &oauth1.Config{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		CallbackURL:    callbackURL,
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: RequestTokenURL,
			AuthorizeURL:    AuthorizeURL,
			AccessTokenURL:  AccessTokenURL,
		},
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Authorizer{config: config}
}

// PendingAuthorization is a request token waiting for the user's approval.
type PendingAuthorization struct {
	RequestToken  string
	RequestSecret string
	URL           string
}

// Begin obtains a request token and the URL the user must visit.
func (a *Authorizer) Begin() (PendingAuthorization, error) {
	token, secret, err := a.config.RequestToken()
	if err != nil {
		return PendingAuthorization{}, fmt.Errorf("failed to obtain request token: %w", err)
	}

	authURL, err := a.config.AuthorizationURL(token)
	if err != nil {
		return PendingAuthorization{}, fmt.Errorf("failed to build authorization URL: %w", err)
	}

	return PendingAuthorization{RequestToken: token, RequestSecret: secret, URL: authURL.String()}, nil
}

// Complete exchanges the verifier for an access token.
func (a *Authorizer) Complete(pending PendingAuthorization, verifier string) (OAuthCredential, error) {
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return OAuthCredential{}, fmt.Errorf("verifier code is required")
	}

	token, secret, err := a.config.AccessToken(pending.RequestToken, pending.RequestSecret, verifier)
	if err != nil {
		return OAuthCredential{}, fmt.Errorf("failed to obtain access token: %w", err)
	}

	return OAuthCredential{
		ConsumerKey:    a.config.ConsumerKey,
		ConsumerSecret: a.config.ConsumerSecret,
		Token:          token,
		TokenSecret:    secret,
	}, nil
}

// Identity returns the username the current credential belongs to.
func (c *Client) Identity(ctx context.Context) (string, error) {
	var out identityResponse
	if err := c.getJSON(ctx, c.baseURL+"/oauth/identity", &out); err != nil {
		return "", fmt.Errorf("identity: %w", err)
	}
	return out.Username, nil
}
