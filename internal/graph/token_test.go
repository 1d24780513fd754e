package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
	"github.com/tidyshare/tidyshare-api/pkg/config"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
)

func TestTokenReturnsValidCachedCredential(t *testing.T) {
	store := &credentialStoreStub{cred: validCredential()}
	tokens := NewTokenSource(store, nil, zap.NewNop(), config.GraphConfig{TokenBuffer: time.Minute})

	token, err := tokens.Token(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Nil(t, store.updated)
}

func TestTokenRefreshesExpiredCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(tokenResponse{ //nolint:errcheck
			AccessToken:  "token-2",
			RefreshToken: "refresh-2",
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	store := &credentialStoreStub{cred: &models.GraphCredential{
		UserID:       "user-1",
		AccessToken:  "token-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}}
	tokens := NewTokenSource(store, nil, zap.NewNop(), config.GraphConfig{
		TokenURL:    srv.URL,
		TokenBuffer: time.Minute,
	})

	token, err := tokens.Token(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	require.NotNil(t, store.updated)
	assert.Equal(t, "refresh-2", store.updated.RefreshToken)
	assert.True(t, store.updated.ExpiresAt.After(time.Now().UTC()))
}

func TestTokenMissingCredentialNeedsReauth(t *testing.T) {
	store := &credentialStoreStub{getErr: sql.ErrNoRows}
	tokens := NewTokenSource(store, nil, zap.NewNop(), config.GraphConfig{})

	_, err := tokens.Token(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrReauthRequired.Code, appErrors.FromError(err).Code)
}

func TestTokenExpiredWithoutRefreshTokenNeedsReauth(t *testing.T) {
	store := &credentialStoreStub{cred: &models.GraphCredential{
		UserID:      "user-1",
		AccessToken: "token-1",
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
	}}
	tokens := NewTokenSource(store, nil, zap.NewNop(), config.GraphConfig{})

	_, err := tokens.Token(context.Background(), "user-1")
	assert.ErrorIs(t, err, appErrors.ErrReauthRequired)
}

func TestTokenRejectedRefreshNeedsReauth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"expired"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	store := &credentialStoreStub{cred: &models.GraphCredential{
		UserID:       "user-1",
		AccessToken:  "token-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}}
	tokens := NewTokenSource(store, nil, zap.NewNop(), config.GraphConfig{TokenURL: srv.URL})

	_, err := tokens.Token(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrReauthRequired.Code, appErrors.FromError(err).Code)
}
