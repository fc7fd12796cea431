package credentials

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsConfig describes a client-credentials grant against an identity provider.
type ClientCredentialsConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
	Scopes       []string
}

// OAuth2 obtains tokens from an oauth2.TokenSource and caches them until expiry.
type OAuth2 struct {
	src oauth2.TokenSource
}

// NewOAuth2 wraps an existing token source.
func NewOAuth2(src oauth2.TokenSource) *OAuth2 {
	return &OAuth2{src: oauth2.ReuseTokenSource(nil, src)}
}

// NewClientCredentials builds a provider for a Keycloak or Auth0 style token endpoint.
// The ctx is used for token fetches and may carry an *http.Client under oauth2.HTTPClient.
func NewClientCredentials(ctx context.Context, cfg ClientCredentialsConfig) (*OAuth2, error) {
	if cfg.TokenURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("oauth2: token url and client id are required")
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	if cfg.Audience != "" {
		cc.EndpointParams = url.Values{"audience": {cfg.Audience}}
	}
	return &OAuth2{src: cc.TokenSource(ctx)}, nil
}

func (o *OAuth2) Token(context.Context) (string, error) {
	tok, err := o.src.Token()
	if err != nil {
		return "", fmt.Errorf("oauth2 token: %w", err)
	}
	return tok.AccessToken, nil
}

// KeycloakTokenURL returns the token endpoint of a Keycloak realm.
func KeycloakTokenURL(baseURL, realm string) string {
	return strings.TrimRight(baseURL, "/") + "/realms/" + realm + "/protocol/openid-connect/token"
}

// Auth0TokenURL returns the token endpoint of an Auth0 tenant domain.
func Auth0TokenURL(domain string) string {
	d := strings.TrimRight(domain, "/")
	if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
		d = "https://" + d
	}
	return d + "/oauth/token"
}
