package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	crateerrors "github.com/lepinkainen/crate/internal/errors"
)

const (
	headerRemaining  = "X-Discogs-Ratelimit-Remaining"
	headerRetryAfter = "Retry-After"
	maxErrorBody     = 512
)

type response struct {
	status int
	header http.Header
	body   []byte
}

// Execute performs an authenticated GET against rawURL and returns the body of a
// 200 response. Every attempt, including retries after 429, is admitted through
// the gate first.
func (c *Client) Execute(ctx context.Context, rawURL string) ([]byte, error) {
	if c.session.Current() == nil {
		return nil, crateerrors.ErrDisabled
	}

	rateLimited := 0
	for attempt := 1; ; attempt++ {
		clock := c.gate.Clock()
		queued := clock.Now()
		if err := c.gate.Admit(ctx); err != nil {
			return nil, err
		}
		c.metrics.ObserveGateWait(clock.Now().Sub(queued))

		cred := c.session.Current()
		if cred == nil {
			return nil, crateerrors.ErrDisabled
		}

		resp, err := c.attempt(ctx, rawURL, cred)
		if err != nil {
			slog.Debug("Discogs request failed", "url", rawURL, "attempt", attempt, "credential", cred.Redacted(), "error", err)
			return nil, err
		}

		c.metrics.ObserveRequest(resp.status)
		slog.Debug("Discogs response",
			"url", rawURL,
			"attempt", attempt,
			"status", resp.status,
			"auth", cred.Name(),
			"credential", cred.Redacted(),
			"remaining", resp.header.Get(headerRemaining),
			"retry_after", resp.header.Get(headerRetryAfter),
		)

		switch resp.status {
		case http.StatusOK:
			if quotaExhausted(resp.header) {
				slog.Debug("Discogs quota exhausted, cooling down", "cooldown", c.gate.ExhaustedCooldown())
				c.metrics.ObserveCooldown("exhausted")
				c.gate.SignalExhausted()
			}
			return resp.body, nil

		case http.StatusUnauthorized:
			return nil, crateerrors.NewUnauthorizedError(cred.Redacted())

		case http.StatusTooManyRequests:
			wait := c.rateLimitWait(resp.header, clock.Now())
			c.metrics.ObserveCooldown("too_many_requests")
			c.gate.SignalCooldown(wait)

			rateLimited++
			if rateLimited > c.maxRetries {
				return nil, crateerrors.NewRateLimitErrorWithRetry(
					fmt.Sprintf("discogs rate limit exceeded after %d attempts", rateLimited),
					rateLimited, wait)
			}

			slog.Info("Discogs rate limited, backing off", "wait", wait, "attempt", rateLimited, "max_retries", c.maxRetries)
			c.metrics.ObserveRetry()
			if err := clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}

		default:
			return nil, crateerrors.NewInvalidStatusError(resp.status, truncateBody(resp.body))
		}
	}
}

// attempt sends one request under its own timeout and reads the whole body.
func (c *Client) attempt(ctx context.Context, rawURL string, cred Credential) (*response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.discogs.v2.discogs+json")

	resp, err := cred.Doer(c.httpClient).Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, crateerrors.NewNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, crateerrors.NewNetworkError(err)
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// rateLimitWait picks the cooldown after a 429: Retry-After when present, the
// exhausted cooldown when the server reports zero quota, otherwise a full window.
func (c *Client) rateLimitWait(header http.Header, now time.Time) time.Duration {
	if wait, ok := parseRetryAfter(header.Get(headerRetryAfter), now); ok {
		return wait
	}
	if quotaExhausted(header) {
		return c.gate.ExhaustedCooldown()
	}
	return defaultRateLimitWait
}

func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		secs = max(secs, 1)
		secs = min(secs, int64(maxRetryAfter/time.Second))
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(value); err == nil {
		wait := at.Sub(now).Round(time.Second)
		return min(max(wait, time.Second), maxRetryAfter), true
	}

	return 0, false
}

func quotaExhausted(header http.Header) bool {
	return strings.TrimSpace(header.Get(headerRemaining)) == "0"
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

// getJSON executes rawURL and decodes the body into target.
func (c *Client) getJSON(ctx context.Context, rawURL string, target any) error {
	body, err := c.Execute(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return crateerrors.NewDecodeError(err)
	}
	return nil
}
