package matchsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"orderdesk/internal/config"
)

// ErrUnavailable marks a matching-service failure: unreachable host or a
// non-success status after retries. Callers must leave stored orders
// untouched when they see it.
var ErrUnavailable = errors.New("matching service unavailable")

// Candidate is one ranked product match as returned by the service. Scores
// are on the service's own 0-100 scale and are never rescaled here.
type Candidate struct {
	Match string  `json:"match"`
	Score float64 `json:"score"`
}

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type batchRequest struct {
	Queries []string `json:"queries"`
}

type batchResponse struct {
	Results map[string][]Candidate `json:"results"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.MatchTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.MatchRateLimitRPS),
	}
}

// MatchBatch resolves many description texts in one call. The returned map is
// keyed by the verbatim query string; queries the service knows nothing about
// are simply absent from it.
func (c *Client) MatchBatch(ctx context.Context, queries []string, limit int) (map[string][]Candidate, error) {
	if len(queries) == 0 {
		return map[string][]Candidate{}, nil
	}

	u, err := url.Parse(c.cfg.MatchBatchAPIURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(batchRequest{Queries: queries})
	if err != nil {
		return nil, err
	}

	body, err := c.doJSON(ctx, http.MethodPost, u.String(), payload)
	if err != nil {
		return nil, err
	}

	var parsed batchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed batch response: %v", ErrUnavailable, err)
	}
	if parsed.Results == nil {
		parsed.Results = map[string][]Candidate{}
	}
	return parsed.Results, nil
}

// MatchSingle resolves one ad-hoc description text.
func (c *Client) MatchSingle(ctx context.Context, query string, limit int) ([]Candidate, error) {
	u, err := url.Parse(c.cfg.MatchSingleAPIURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	body, err := c.doJSON(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	return candidates, nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("match api status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, string(body))
		}

		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("match request failed")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
