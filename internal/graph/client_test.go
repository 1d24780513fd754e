package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tidyshare/tidyshare-api/internal/models"
	"github.com/tidyshare/tidyshare-api/pkg/config"
)

type credentialStoreStub struct {
	cred    *models.GraphCredential
	getErr  error
	updated *models.GraphCredential
}

func (s *credentialStoreStub) Get(ctx context.Context, userID string) (*models.GraphCredential, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	copied := *s.cred
	return &copied, nil
}

func (s *credentialStoreStub) Update(ctx context.Context, cred *models.GraphCredential) error {
	s.updated = cred
	return nil
}

func validCredential() *models.GraphCredential {
	return &models.GraphCredential{
		UserID:      "user-1",
		AccessToken: "token-1",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}
}

func newTestClient(t *testing.T, baseURL string) (*Client, *[]time.Duration) {
	t.Helper()
	tokens := NewTokenSource(&credentialStoreStub{cred: validCredential()}, nil, zap.NewNop(), config.GraphConfig{
		TokenBuffer: time.Minute,
	})
	client := NewClient(tokens, nil, zap.NewNop(), config.GraphConfig{
		BaseURL:        baseURL,
		RequestsPerSec: 1000,
		RetryAfterDef:  2 * time.Second,
	})
	var slept []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return client, &slept
}

func TestClientRetriesAfterThrottle(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"site-1"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client, slept := newTestClient(t, srv.URL)

	body, err := client.Get(context.Background(), "user-1", "/sites/x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"site-1"}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, *slept, 1)
	assert.Equal(t, 7*time.Second, (*slept)[0])
}

func TestClientThrottleWithoutHeaderUsesDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client, slept := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "user-1", "/sites/x")
	require.NoError(t, err)
	require.Len(t, *slept, 1)
	assert.Equal(t, 2*time.Second, (*slept)[0])
}

func TestClientSurfacesHardFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"accessDenied"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "user-1", "/sites/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph returned 403")
}

func TestClientPaginateFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drives/d1/root/children":
			page := ItemPage{
				Value:    []DriveItem{{ID: "i-1", Name: "alpha.txt"}},
				NextLink: srv.URL + "/page-two",
			}
			json.NewEncoder(w).Encode(page) //nolint:errcheck
		case "/page-two":
			page := ItemPage{
				Value: []DriveItem{{ID: "i-2", Name: "beta.txt"}},
			}
			json.NewEncoder(w).Encode(page) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)

	var names []string
	err := client.Paginate(context.Background(), "user-1", RootChildrenPath("d1"), func(items []DriveItem) error {
		for _, item := range items {
			names = append(names, item.Name)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha.txt", "beta.txt"}, names)
}

func TestClientSiteRequiresID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)

	_, err := client.Site(context.Background(), "user-1", "contoso.sharepoint.com", "/sites/ops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolved without an id")
}
