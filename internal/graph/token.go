package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
	"github.com/tidyshare/tidyshare-api/pkg/config"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
)

type credentialStore interface {
	Get(ctx context.Context, userID string) (*models.GraphCredential, error)
	Update(ctx context.Context, cred *models.GraphCredential) error
}

// TokenSource hands out per-user Graph access tokens, refreshing them through
// the OAuth token endpoint when the cached token is within the expiry buffer.
type TokenSource struct {
	store  credentialStore
	cache  *redis.Client
	client *http.Client
	logger *zap.Logger
	cfg    config.GraphConfig
}

// NewTokenSource builds a token source. The Redis client is optional; when
// nil every call falls through to the credential row.
func NewTokenSource(store credentialStore, cache *redis.Client, logger *zap.Logger, cfg config.GraphConfig) *TokenSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSource{
		store:  store,
		cache:  cache,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		cfg:    cfg,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func tokenCacheKey(userID string) string {
	return "graph:token:" + userID
}

// Token returns a usable access token for the user, refreshing and persisting
// the rotated pair when needed. A user without a stored refresh token must
// re-authenticate with Microsoft.
func (t *TokenSource) Token(ctx context.Context, userID string) (string, error) {
	if t.cache != nil {
		if cached, err := t.cache.Get(ctx, tokenCacheKey(userID)).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	cred, err := t.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrReauthRequired, "no Microsoft credential on file")
		}
		return "", fmt.Errorf("load graph credential: %w", err)
	}

	if cred.ValidFor(t.cfg.TokenBuffer) {
		t.cacheToken(ctx, userID, cred)
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", appErrors.ErrReauthRequired
	}

	refreshed, err := t.refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}

	cred.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		cred.RefreshToken = refreshed.RefreshToken
	}
	cred.ExpiresAt = time.Now().UTC().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	cred.UpdatedAt = time.Now().UTC()

	if err := t.store.Update(ctx, cred); err != nil {
		return "", fmt.Errorf("persist refreshed credential: %w", err)
	}
	t.cacheToken(ctx, userID, cred)

	return cred.AccessToken, nil
}

func (t *TokenSource) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", t.cfg.ClientID)
	form.Set("client_secret", t.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if len(t.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(t.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "invalid_grant" {
			return nil, appErrors.Clone(appErrors.ErrReauthRequired, "refresh token rejected by identity provider")
		}
		return nil, fmt.Errorf("token endpoint returned %d: %s %s", resp.StatusCode, body.Error, body.ErrorDescription)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned empty access token")
	}
	return &token, nil
}

func (t *TokenSource) cacheToken(ctx context.Context, userID string, cred *models.GraphCredential) {
	if t.cache == nil {
		return
	}
	ttl := time.Until(cred.ExpiresAt) - t.cfg.TokenBuffer
	if ttl <= 0 {
		return
	}
	if err := t.cache.Set(ctx, tokenCacheKey(userID), cred.AccessToken, ttl).Err(); err != nil {
		t.logger.Warn("failed to cache graph token", zap.Error(err))
	}
}
