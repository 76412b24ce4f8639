// Package oracle maintains the SOL/USD reference price used for
// market-cap conversion, refreshed in the background from public price
// APIs.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/observability"
)

// Default configuration values.
const (
	DefaultInterval  = 15 * time.Second
	DefaultTimeout   = 10 * time.Second
	DefaultStaleness = 5 * time.Minute
)

const (
	defaultPythEndpoint      = "https://hermes.pyth.network"
	defaultCoinGeckoEndpoint = "https://api.coingecko.com"

	// Pyth Hermes feed id for SOL/USD.
	solUSDFeedID = "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"
)

// Options configures an Oracle. The CoinGecko API key is optional;
// without it the fallback uses the public rate-limited tier.
type Options struct {
	HTTPClient        *http.Client
	PythEndpoint      string
	CoinGeckoEndpoint string
	CoinGeckoAPIKey   string
	Interval          time.Duration
	Timeout           time.Duration
	Staleness         time.Duration
	Logger            *zap.Logger
}

type sample struct {
	price float64
	at    time.Time
}

// Oracle fetches the SOL/USD price on a timer, Pyth first and
// CoinGecko as fallback, and serves the last good value from an
// atomic cell.
type Oracle struct {
	client    *http.Client
	pythURL   string
	geckoURL  string
	geckoKey  string
	interval  time.Duration
	timeout   time.Duration
	staleness time.Duration
	logger    *zap.Logger

	cell  atomic.Pointer[sample]
	clock func() time.Time
}

// New creates an oracle from its options.
func New(opts Options) *Oracle {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	pythURL := opts.PythEndpoint
	if pythURL == "" {
		pythURL = defaultPythEndpoint
	}
	geckoURL := opts.CoinGeckoEndpoint
	if geckoURL == "" {
		geckoURL = defaultCoinGeckoEndpoint
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	staleness := opts.Staleness
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		client:    client,
		pythURL:   pythURL,
		geckoURL:  geckoURL,
		geckoKey:  opts.CoinGeckoAPIKey,
		interval:  interval,
		timeout:   timeout,
		staleness: staleness,
		logger:    logger,
		clock:     time.Now,
	}
}

// Price returns the last fetched SOL/USD price, or 0 when no fetch has
// succeeded within the staleness window. Callers treat 0 as price
// unavailable.
func (o *Oracle) Price() float64 {
	s := o.cell.Load()
	if s == nil || o.clock().Sub(s.at) > o.staleness {
		return 0
	}
	return s.price
}

// Run fetches once immediately and then on every tick until the
// context is cancelled.
func (o *Oracle) Run(ctx context.Context) error {
	o.refresh(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.refresh(ctx)
		}
	}
}

// refresh tries the primary source and falls back once. A cycle in
// which both sources fail leaves the previous sample in place. Each
// fetch gets its own timeout.
func (o *Oracle) refresh(ctx context.Context) {
	pythCtx, cancel := context.WithTimeout(ctx, o.timeout)
	price, err := o.fetchPyth(pythCtx)
	cancel()
	if err != nil {
		observability.RecordPriceFetchError("pyth")
		o.logger.Warn("pyth price fetch failed", zap.Error(err))

		geckoCtx, cancel := context.WithTimeout(ctx, o.timeout)
		price, err = o.fetchCoinGecko(geckoCtx)
		cancel()
		if err != nil {
			observability.RecordPriceFetchError("coingecko")
			o.logger.Warn("coingecko price fetch failed", zap.Error(err))
			return
		}
	}

	o.cell.Store(&sample{price: price, at: o.clock()})
	observability.UpdateSolPrice(price)
	o.logger.Debug("sol price updated", zap.Float64("usd", price))
}

type pythResponse struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Expo        int32  `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"parsed"`
}

func (o *Oracle) fetchPyth(ctx context.Context) (float64, error) {
	u := o.pythURL + "/v2/updates/price/latest?ids[]=" + solUSDFeedID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pyth: status %d", resp.StatusCode)
	}

	var body pythResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("pyth: decode: %w", err)
	}
	if len(body.Parsed) == 0 {
		return 0, fmt.Errorf("pyth: empty feed response")
	}

	raw, err := strconv.ParseFloat(body.Parsed[0].Price.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("pyth: bad price %q: %w", body.Parsed[0].Price.Price, err)
	}
	price := raw * math.Pow10(int(body.Parsed[0].Price.Expo))
	if price <= 0 {
		return 0, fmt.Errorf("pyth: non-positive price %f", price)
	}
	return price, nil
}

type coinGeckoResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

func (o *Oracle) fetchCoinGecko(ctx context.Context) (float64, error) {
	q := url.Values{"ids": {"solana"}, "vs_currencies": {"usd"}}
	u := o.geckoURL + "/api/v3/simple/price?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	if o.geckoKey != "" {
		req.Header.Set("x-cg-demo-api-key", o.geckoKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko: status %d", resp.StatusCode)
	}

	var body coinGeckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("coingecko: decode: %w", err)
	}
	if body.Solana.USD <= 0 {
		return 0, fmt.Errorf("coingecko: non-positive price %f", body.Solana.USD)
	}
	return body.Solana.USD, nil
}
