package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tidyshare/tidyshare-api/pkg/config"
)

// RequestObserver receives instrumentation callbacks from the client.
type RequestObserver interface {
	ObserveGraphRequest(status int, duration time.Duration)
	ObserveThrottleRetry()
}

// Client wraps the paginated, rate-limited Graph REST API. Throttling
// responses (429) are absorbed by sleeping for the server-supplied
// Retry-After and retrying; callers only see hard failures.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   *TokenSource
	limiter  *rate.Limiter
	observer RequestObserver
	logger   *zap.Logger

	retryAfterDefault time.Duration

	// test seam; defaults to a context-aware time.Sleep
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Graph client around a token source.
func NewClient(tokens *TokenSource, observer RequestObserver, logger *zap.Logger, cfg config.GraphConfig) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	retryAfter := cfg.RetryAfterDef
	if retryAfter <= 0 {
		retryAfter = 5 * time.Second
	}
	return &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		http:              &http.Client{Timeout: 60 * time.Second},
		tokens:            tokens,
		limiter:           rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		observer:          observer,
		logger:            logger,
		retryAfterDefault: retryAfter,
		sleep:             sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Get performs an authorized GET against a Graph path (or an absolute URL,
// as handed back in @odata.nextLink) and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, userID, path string) (json.RawMessage, error) {
	target := path
	if !strings.HasPrefix(target, "http") {
		target = c.baseURL + path
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		token, err := c.tokens.Token(ctx, userID)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build graph request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph request %s: %w", target, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if c.observer != nil {
			c.observer.ObserveGraphRequest(resp.StatusCode, time.Since(start))
		}
		if readErr != nil {
			return nil, fmt.Errorf("read graph response: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := c.retryAfterDefault
			if raw := resp.Header.Get("Retry-After"); raw != "" {
				if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
					wait = time.Duration(secs) * time.Second
				}
			}
			if c.observer != nil {
				c.observer.ObserveThrottleRetry()
			}
			c.logger.Warn("graph throttled, backing off",
				zap.String("path", target),
				zap.Duration("retry_after", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("graph returned %d for %s: %s", resp.StatusCode, target, truncate(string(body), 512))
		}

		return body, nil
	}
}

func (c *Client) getJSON(ctx context.Context, userID, path string, out interface{}) error {
	body, err := c.Get(ctx, userID, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode graph response for %s: %w", path, err)
	}
	return nil
}

// Paginate walks every page of a children listing, invoking fn per page and
// following @odata.nextLink until absent. There is no cursor persistence; a
// restarted walk re-fetches from page one.
func (c *Client) Paginate(ctx context.Context, userID, path string, fn func(items []DriveItem) error) error {
	next := path
	for next != "" {
		var page ItemPage
		if err := c.getJSON(ctx, userID, next, &page); err != nil {
			return err
		}
		if err := fn(page.Value); err != nil {
			return err
		}
		next = page.NextLink
	}
	return nil
}

// Site resolves a hostname + server-relative site path to a Graph site.
func (c *Client) Site(ctx context.Context, userID, hostname, sitePath string) (*Site, error) {
	path := fmt.Sprintf("/sites/%s:%s", hostname, escapePath(sitePath))
	var site Site
	if err := c.getJSON(ctx, userID, path, &site); err != nil {
		return nil, err
	}
	if site.ID == "" {
		return nil, fmt.Errorf("site %s%s resolved without an id", hostname, sitePath)
	}
	return &site, nil
}

// Drives lists the document libraries of a site.
func (c *Client) Drives(ctx context.Context, userID, siteID string) ([]Drive, error) {
	var page drivePage
	if err := c.getJSON(ctx, userID, "/sites/"+siteID+"/drives", &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// RootChildrenPath is the listing path for a drive's root folder.
func RootChildrenPath(driveID string) string {
	return "/drives/" + driveID + "/root/children"
}

// ChildrenPath is the listing path for a folder item's children.
func ChildrenPath(driveID, itemID string) string {
	return "/drives/" + driveID + "/items/" + itemID + "/children"
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
