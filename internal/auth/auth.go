// Package auth acquires Graph API bearer tokens with the OAuth2 client
// credentials flow: the tool authenticates as an app registration, not a
// signed-in user, so it needs a tenant id, an application (client) id and a
// client secret. Tokens are cached on disk between invocations; every
// pipeline stage is a separate process and should not pay a token round
// trip each time.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Environment variables holding the app registration's identity.
const (
	EnvTenantID     = "M365_TENANT_ID"
	EnvClientID     = "M365_CLIENT_ID"
	EnvClientSecret = "M365_CLIENT_SECRET"
	EnvUserObjectID = "M365_USER_OBJECT_ID"
)

// defaultAuthority is the Microsoft identity platform endpoint.
const defaultAuthority = "https://login.microsoftonline.com"

// graphScope requests every permission the app registration holds.
const graphScope = "https://graph.microsoft.com/.default"

// Credentials identify the app registration.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// UserObjectID addresses a mailbox/drive owner; app-only tokens have
	// no signed-in user for /me.
	UserObjectID string
	// Authority overrides the token endpoint host. Tests point it at a
	// local server.
	Authority string
}

// FromEnv reads credentials from the environment (a .env file loaded by the
// CLI counts). All three identity fields are required.
func FromEnv() (Credentials, error) {
	creds := Credentials{
		TenantID:     os.Getenv(EnvTenantID),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		UserObjectID: os.Getenv(EnvUserObjectID),
	}
	var missing []string
	for _, pair := range []struct{ name, val string }{
		{EnvTenantID, creds.TenantID},
		{EnvClientID, creds.ClientID},
		{EnvClientSecret, creds.ClientSecret},
	} {
		if pair.val == "" {
			missing = append(missing, pair.name)
		}
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("missing credentials: %v", missing)
	}
	return creds, nil
}

// TokenSource returns a client-credentials token source for the Graph API.
func (c Credentials) TokenSource(ctx context.Context) oauth2.TokenSource {
	authority := c.Authority
	if authority == "" {
		authority = defaultAuthority
	}
	cfg := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, c.TenantID),
		Scopes:       []string{graphScope},
	}
	return cfg.TokenSource(ctx)
}

// CachedTokenSource wraps src with a JSON file cache at path. A valid cached
// token is served without hitting the network; an expired or unreadable
// cache falls through to src and the fresh token is written back with mode
// 0600.
func CachedTokenSource(path string, src oauth2.TokenSource) oauth2.TokenSource {
	return &cachingSource{path: path, src: src}
}

type cachingSource struct {
	path string
	src  oauth2.TokenSource
	mu   sync.Mutex
}

func (c *cachingSource) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok := c.readCache(); tok.Valid() {
		return tok, nil
	}

	tok, err := c.src.Token()
	if err != nil {
		return nil, err
	}
	c.writeCache(tok)
	return tok, nil
}

func (c *cachingSource) readCache() *oauth2.Token {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return &oauth2.Token{}
	}
	var tok oauth2.Token
	if json.Unmarshal(data, &tok) != nil {
		return &oauth2.Token{}
	}
	return &tok
}

// writeCache is best-effort: a failed write costs a token fetch next run,
// nothing more.
func (c *cachingSource) writeCache(tok *oauth2.Token) {
	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return
	}
	_ = os.WriteFile(c.path, data, 0600)
}
