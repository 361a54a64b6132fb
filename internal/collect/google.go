package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const defaultTokenFile = "token.json"

// ErrNotAuthorized is returned when no stored Google token exists yet.
var ErrNotAuthorized = errors.New("google: no stored token, run 'necromancer auth google'")

// GoogleAuth loads OAuth client credentials and the stored user token shared
// by the mail and drive sources.
type GoogleAuth struct {
	CredentialsFile string
	TokenFile       string
}

// Configured reports whether the credentials file exists.
func (a GoogleAuth) Configured() bool {
	if a.CredentialsFile == "" {
		return false
	}
	_, err := os.Stat(a.CredentialsFile)
	return err == nil
}

// OAuthConfig reads the client credentials with read-only mail and drive scopes.
func (a GoogleAuth) OAuthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gmail.GmailReadonlyScope, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return cfg, nil
}

// TokenSource returns a refreshing token source built from the stored token.
func (a GoogleAuth) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := a.OAuthConfig()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.tokenFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("reading token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// AuthURL returns the consent page URL for the installed-app flow.
func (a GoogleAuth) AuthURL() (string, error) {
	cfg, err := a.OAuthConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("necromancer", oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token and stores it.
func (a GoogleAuth) Exchange(ctx context.Context, code string) error {
	cfg, err := a.OAuthConfig()
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging code: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	path := a.tokenFile()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating token directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func (a GoogleAuth) tokenFile() string {
	if a.TokenFile == "" {
		return defaultTokenFile
	}
	return a.TokenFile
}

// RateLimiter is a token bucket with a backoff window opened by 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// Conservative per-user defaults, well below Google's published quotas.
var (
	gmailRate = rateConfig{perSecond: 2, burst: 5}
	driveRate = rateConfig{perSecond: 8, burst: 10}
)

type rateConfig struct {
	perSecond float64
	burst     int
}

func newRateLimiter(cfg rateConfig) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.perSecond), cfg.burst)}
}

// Wait blocks until a request may be sent, honouring any backoff window.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError opens a backoff window; a non-positive value means 60s.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	if retryAfterSeconds <= 0 {
		retryAfterSeconds = 60
	}
	r.mu.Lock()
	r.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
	r.mu.Unlock()
}

// observe inspects a Google API error and opens a backoff window on 429.
func (r *RateLimiter) observe(err error) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		r.RecordRateLimitError(0)
	}
}

// describeGoogleError turns common Google API failures into short messages.
func describeGoogleError(err error) string {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err.Error()
	}
	switch gerr.Code {
	case http.StatusUnauthorized:
		return "unauthorised (invalid credentials)"
	case http.StatusForbidden:
		return "forbidden (insufficient permissions)"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	}
	return err.Error()
}
