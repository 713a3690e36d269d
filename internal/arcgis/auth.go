package arcgis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/401-Nick/lra-alerts/internal/config"
)

// refreshMargin forces a refresh when the cached token is within this
// window of its expiry, so a token never dies mid-request.
const refreshMargin = 2 * time.Minute

// TokenProvider supplies the credential attached to each source request.
// Invalidate drops any cached token; the client calls it once after an
// authentication failure before its single retry.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// NewTokenProvider picks the auth strategy for the configured mode.
func NewTokenProvider(cfg config.SourceConfig) TokenProvider {
	switch cfg.AuthMode {
	case config.AuthToken:
		return &staticProvider{token: cfg.Token}
	case config.AuthOAuth:
		return &oauthProvider{
			cc: clientcredentials.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				TokenURL:     cfg.TokenURL,
			},
		}
	default:
		return noneProvider{}
	}
}

// noneProvider is the unauthenticated strategy for public layers.
type noneProvider struct{}

func (noneProvider) Token(context.Context) (string, error) { return "", nil }
func (noneProvider) Invalidate()                           {}

// staticProvider attaches a pre-shared token. Invalidate is a no-op:
// there is nothing to refresh, so an auth failure with a static token is
// terminal.
type staticProvider struct {
	token string
}

func (p *staticProvider) Token(context.Context) (string, error) { return p.token, nil }
func (p *staticProvider) Invalidate()                           {}

// oauthProvider fetches client-credentials tokens from the portal and
// caches them until they approach expiry. The mutex is held across the
// fetch, which makes refresh single-flight: concurrent callers wait for
// the one in-progress refresh instead of issuing duplicates.
type oauthProvider struct {
	cc clientcredentials.Config

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func (p *oauthProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Add(refreshMargin).Before(p.expiry) {
		return p.token, nil
	}

	tok, err := p.cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: fetching client-credentials token: %v", ErrAuthFailed, err)
	}

	p.token = tok.AccessToken
	p.expiry = tok.Expiry
	return p.token, nil
}

func (p *oauthProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiry = time.Time{}
}
