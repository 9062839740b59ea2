// backend/src/services/finnhub_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/username/isincheck/backend/src/config"
	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/models"
)

const (
	defaultMaxRetries = 2
	defaultBaseDelay  = 1 * time.Second
)

// APIError is a non-2xx response from the Finnhub API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("finnhub API error: %d %s - %s", e.StatusCode, e.Status, e.Body)
}

// IsRateLimitError reports whether err stems from an upstream 429.
func IsRateLimitError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// FinnhubService is the HTTP client for the Finnhub API. Requests are
// retried on 429 and 5xx responses with exponential backoff.
type FinnhubService struct {
	httpClient  *http.Client
	baseURL     string
	secret      string
	maxRetries  int
	baseDelay   time.Duration
	concurrency int
}

func NewFinnhubService(cfg *config.AppConfig) *FinnhubService {
	return &FinnhubService{
		httpClient:  &http.Client{Timeout: cfg.FinnhubRequestTimeout},
		baseURL:     cfg.FinnhubBaseURL,
		secret:      cfg.FinnhubSecret,
		maxRetries:  defaultMaxRetries,
		baseDelay:   defaultBaseDelay,
		concurrency: cfg.FinnhubConcurrencyLimit,
	}
}

// Concurrency returns the configured in-flight request limit.
func (s *FinnhubService) Concurrency() int {
	return s.concurrency
}

// ProfileByISIN fetches the company profile for an ISIN.
func (s *FinnhubService) ProfileByISIN(ctx context.Context, isin string) (models.FinnhubProfile, error) {
	var profile models.FinnhubProfile
	err := s.request(ctx, "/stock/profile2", url.Values{"isin": {isin}}, &profile)
	return profile, err
}

// ProfileBySymbol fetches the company profile for an exchange symbol.
func (s *FinnhubService) ProfileBySymbol(ctx context.Context, symbol string) (models.FinnhubProfile, error) {
	var profile models.FinnhubProfile
	err := s.request(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &profile)
	return profile, err
}

type searchResponse struct {
	Count  int                          `json:"count"`
	Result []models.FinnhubSearchResult `json:"result"`
}

// Search runs the symbol lookup endpoint.
func (s *FinnhubService) Search(ctx context.Context, query string) ([]models.FinnhubSearchResult, error) {
	var resp searchResponse
	if err := s.request(ctx, "/search", url.Values{"q": {query}}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (s *FinnhubService) request(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u, err := url.Parse(s.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("invalid finnhub URL for %s: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("token", s.secret)
	for key, vals := range params {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.baseDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		body, err := s.do(ctx, u.String())
		if err != nil {
			lastErr = err
			var apiErr *APIError
			if errors.As(err, &apiErr) && !retryable(apiErr.StatusCode) {
				return err
			}
			logger.L.Warn("Finnhub request failed, will retry", "endpoint", endpoint, "attempt", attempt, "error", err)
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding finnhub response for %s: %w", endpoint, err)
		}
		return nil
	}
	return lastErr
}

func (s *FinnhubService) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Finnhub-Token", s.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: msg}
	}
	return body, nil
}

func retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// RequestBatch runs the given request functions with at most limit in flight
// at once. Result order matches request order. The second return value is the
// average wall time per request in milliseconds.
func RequestBatch[T any](ctx context.Context, limit int, requests []func(context.Context) T) ([]T, float64) {
	results := make([]T, len(requests))
	if len(requests) == 0 {
		return results, 0
	}

	var (
		mu    sync.Mutex
		total time.Duration
	)

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			start := time.Now()
			results[i] = req(gctx)
			elapsed := time.Since(start)

			mu.Lock()
			total += elapsed
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors, so Wait cannot fail.
	_ = g.Wait()

	avg := total.Seconds() * 1000 / float64(len(requests))
	return results, avg
}
