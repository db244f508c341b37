package location

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

	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/internal/tlsutil"
	"github.com/BaSui01/waybillflow/types"
)

// Geocoder turns a city/address pair into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, address string) (*types.Coordinate, error)
}

// NominatimGeocoder queries a Nominatim-compatible endpoint. The public
// instance allows at most one request per second, so every call goes through
// a rate limiter regardless of caller concurrency.
type NominatimGeocoder struct {
	endpoint    string
	userAgent   string
	countryHint string
	client      *http.Client
	limiter     *rate.Limiter
	metrics     Metrics
	logger      *zap.Logger
}

func NewNominatimGeocoder(cfg config.GeocodeConfig, logger *zap.Logger) *NominatimGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://nominatim.openstreetmap.org/search"
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "waybillflow/1.0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	return &NominatimGeocoder{
		endpoint:    endpoint,
		userAgent:   userAgent,
		countryHint: cfg.CountryHint,
		client:      tlsutil.SecureHTTPClient(timeout),
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		logger:      logger,
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// SetMetrics attaches a lookup-outcome observer.
func (g *NominatimGeocoder) SetMetrics(m Metrics) {
	g.metrics = m
}

// Geocode resolves "city, address, country-hint" to the top-ranked match.
// A query that returns no results is an error: callers fall back to other
// resolution strategies instead of guessing.
func (g *NominatimGeocoder) Geocode(ctx context.Context, city, address string) (*types.Coordinate, error) {
	coord, err := g.lookup(ctx, city, address)
	if g.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		g.metrics.RecordGeocode(status)
	}
	return coord, err
}

func (g *NominatimGeocoder) lookup(ctx context.Context, city, address string) (*types.Coordinate, error) {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, address, g.countryHint} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("geocode: empty query")
	}
	query := strings.Join(parts, ", ")

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode rate wait: %w", err)
	}

	u, err := url.Parse(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("geocode endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request: status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&results); err != nil {
		return nil, fmt.Errorf("geocode response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("geocode: no results for %q", query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode response lat: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode response lon: %w", err)
	}

	g.logger.Debug("geocoded location",
		zap.String("query", query),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng))
	return &types.Coordinate{Lat: lat, Lng: lng, Address: results[0].DisplayName}, nil
}
