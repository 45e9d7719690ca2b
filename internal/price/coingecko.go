package price

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/provider"
)

// Service fetches and caches the SOL/USD price from CoinGecko.
type Service struct {
	client   *http.Client
	baseURL  string
	ttl      time.Duration
	mu       sync.Mutex
	cached   decimal.Decimal
	cachedAt time.Time
}

// NewService creates a price Service against baseURL.
func NewService(client *http.Client, baseURL string) *Service {
	slog.Info("price service initialized",
		"baseURL", baseURL,
		"cacheDuration", config.PriceCacheDuration,
	)
	return &Service{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     config.PriceCacheDuration,
	}
}

// coinGeckoResponse is the /simple/price body: coin ID to currency to price.
type coinGeckoResponse map[string]map[string]decimal.Decimal

// SOLUSD returns the USD price of one SOL, from cache while it is fresh.
func (s *Service) SOLUSD(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cached.IsZero() && time.Since(s.cachedAt) < s.ttl {
		slog.Debug("price cache hit", "age", time.Since(s.cachedAt).Round(time.Second))
		return s.cached, nil
	}

	p, err := s.fetch(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	s.cached, s.cachedAt = p, time.Now()
	return p, nil
}

func (s *Service) fetch(ctx context.Context) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.baseURL, config.CoinGeckoSOLID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, &config.OpError{Kind: config.KindNetwork, Op: "price", Err: fmt.Errorf("%w: %v", config.ErrPriceFetchFailed, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return decimal.Zero, &config.OpError{
			Kind:       config.KindRateLimited,
			Op:         "price",
			Err:        config.ErrPriceFetchFailed,
			RetryAfter: provider.ParseRetryAfter(resp.Header),
		}
	case resp.StatusCode != http.StatusOK:
		return decimal.Zero, fmt.Errorf("%w: HTTP %d", config.ErrPriceFetchFailed, resp.StatusCode)
	}

	var body coinGeckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode error: %v", config.ErrPriceFetchFailed, err)
	}
	usd, ok := body[config.CoinGeckoSOLID]["usd"]
	if !ok || !usd.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no SOL price in response", config.ErrPriceFetchFailed)
	}

	slog.Info("SOL price fetched", "usd", usd.String(), "elapsed", time.Since(start).Round(time.Millisecond))
	return usd, nil
}
