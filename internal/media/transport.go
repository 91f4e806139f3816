package media

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// APIKeyTransport is an http.RoundTripper that injects a static API key
// header on every outbound request, as the *arr services and Jellyseerr
// expect.
type APIKeyTransport struct {
	Key        string
	HeaderName string // default "X-Api-Key"
	Base       http.RoundTripper
}

// RoundTrip clones the request and sets the key header.
func (t *APIKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	name := t.HeaderName
	if name == "" {
		name = "X-Api-Key"
	}
	r2.Header.Set(name, t.Key)
	return t.base().RoundTrip(r2)
}

func (t *APIKeyTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// withAPIKey returns a client that sends key on every request over base.
func withAPIKey(base *http.Client, key string) *http.Client {
	if key == "" {
		return base
	}
	c := *base
	c.Transport = &APIKeyTransport{Key: key, Base: base.Transport}
	return &c
}

// bearerClient returns a client that sends the TMDb v4 read access token as
// an OAuth2 bearer token over base.
func bearerClient(base *http.Client, token string) *http.Client {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}
