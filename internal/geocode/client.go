package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/retry"
)

// ErrNotFound means the service answered but knows no such place. Permanent:
// never retried.
var ErrNotFound = errors.New("location not found")

type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	CountryCode string // ISO 3166-1 alpha-2, lowercase as served
}

// Client talks to a Nominatim-compatible geocoding service. The service
// requires an identifying User-Agent and tolerates at most ~1 request/second,
// so every call goes through the limiter before it hits the wire.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
}

func NewClient(cfg config.GeocodeConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			InitialWait: cfg.InitialWait,
			MaxWait:     cfg.MaxWait,
		},
	}
}

// Lookup resolves free-text to the best-ranked place. Transient failures are
// retried under the client's policy; ErrNotFound is returned as-is (wrapped)
// when the service has no match.
func (c *Client) Lookup(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrNotFound
	}

	return retry.Do(ctx, c.policy, "geocode lookup", func(ctx context.Context) (*Result, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.search(ctx, query)
	})
}

func (c *Client) search(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "1")

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.StatusError{Code: resp.StatusCode}
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if len(places) == 0 {
		return nil, ErrNotFound
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: p.DisplayName,
		CountryCode: p.Address.CountryCode,
	}, nil
}

// Nominatim serves coordinates as strings.
type nominatimPlace struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}
