package discogs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizerFlow(t *testing.T) {
	var accessAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), `oauth_callback="oob"`)
		_, _ = w.Write([]byte("oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true"))
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		accessAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("oauth_token=acc-token&oauth_token_secret=acc-secret"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	auth := NewAuthorizer("ck", "cs", "", WithEndpoint(
		server.URL+"/oauth/request_token",
		"https://www.discogs.com/oauth/authorize",
		server.URL+"/oauth/access_token",
	))

	pending, err := auth.Begin()
	require.NoError(t, err)
	assert.Equal(t, "req-token", pending.RequestToken)
	assert.Equal(t, "req-secret", pending.RequestSecret)
	assert.True(t, strings.HasPrefix(pending.URL, "https://www.discogs.com/oauth/authorize?"))
	assert.Contains(t, pending.URL, "oauth_token=req-token")

	cred, err := auth.Complete(pending, " 12345 ")
	require.NoError(t, err)
	assert.Equal(t, OAuthCredential{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Token:          "acc-token",
		TokenSecret:    "acc-secret",
	}, cred)
	assert.Contains(t, accessAuth, `oauth_verifier="12345"`)
}

func TestAuthorizerCompleteRequiresVerifier(t *testing.T) {
	auth := NewAuthorizer("ck", "cs", OutOfBandCallback)

	_, err := auth.Complete(PendingAuthorization{RequestToken: "t"}, "  ")
	require.Error(t, err)
}

func TestIdentity(t *testing.T) {
	doer := always(http.StatusOK, `{"id":1,"username":"crate-digger","resource_url":"https://api.discogs.com/users/crate-digger"}`, nil)
	client, _ := newTestClient(t, doer)

	name, err := client.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "crate-digger", name)
	assert.Equal(t, "/oauth/identity", doer.last().URL.Path)
}
