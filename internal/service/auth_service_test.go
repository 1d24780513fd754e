package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tidyshare/tidyshare-api/internal/models"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
)

type authUserStub struct {
	user          *models.User
	findErr       error
	lastLoginSeen *time.Time
}

func (s *authUserStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func (s *authUserStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func (s *authUserStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.lastLoginSeen = &ts
	return nil
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "user@example.com",
		PasswordHash: string(hash),
		FullName:     "Test User",
		Active:       true,
	}
}

func newTestAuthService(users authUserStore) *AuthService {
	return NewAuthService(users, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "tidyshare-api",
	})
}

func TestLoginIssuesValidToken(t *testing.T) {
	users := &authUserStub{user: activeUser(t, "s3cret")}
	svc := newTestAuthService(users)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	require.NotNil(t, users.lastLoginSeen)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	users := &authUserStub{user: activeUser(t, "s3cret")}
	svc := newTestAuthService(users)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmailLooksLikeBadCredentials(t *testing.T) {
	users := &authUserStub{findErr: sql.ErrNoRows}
	svc := newTestAuthService(users)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	user := activeUser(t, "s3cret")
	user.Active = false
	svc := newTestAuthService(&authUserStub{user: user})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	svc := newTestAuthService(&authUserStub{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	users := &authUserStub{user: activeUser(t, "s3cret")}
	svc := newTestAuthService(users)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "s3cret"})
	require.NoError(t, err)

	other := NewAuthService(users, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "different-secret"})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
