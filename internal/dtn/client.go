// Package dtn talks to the remote weather tile and style-metadata service and
// to the plain GeoJSON endpoints some overlays are fed from.
package dtn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/joeblew999/plat-marine/internal/metrics"
)

// DefaultBaseURL is the production map API.
const DefaultBaseURL = "https://map.api.dtn.com"

var (
	// ErrMalformed means the remote answered but the payload is unusable.
	ErrMalformed = errors.New("malformed response")
	// ErrStatus means the remote answered with a non-2xx status.
	ErrStatus = errors.New("unexpected status")
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds every request. Zero means 15s.
	Timeout time.Duration
	// RequestsPerSecond paces outgoing requests. Zero means 10.
	RequestsPerSecond float64
	Burst             int
	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// NewClient creates a client. Five consecutive failures open the circuit for
// thirty seconds; while open, requests fail without touching the network.
// Cancelled requests do not count as failures.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	log := opts.Logger.With("component", "dtn")
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "dtn",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A caller abandoning a request says nothing about the remote.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
				metrics.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
			},
		}),
		log: log,
	}
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

func (c *Client) get(ctx context.Context, target string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("GET %s: %w", redact(target), err)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		c.log.Debug("Request failed", "url", redact(target), "error", err)
		return nil, fmt.Errorf("GET %s: %w", redact(target), err)
	}
	return out.([]byte), nil
}

type styleDoc struct {
	MapBoxStyle struct {
		Layers []map[string]any `json:"layers"`
	} `json:"mapBoxStyle"`
}

// DescribeLayer fetches the style metadata of feedID and returns the vector
// source-layer name its tiles carry.
func (c *Client) DescribeLayer(ctx context.Context, feedID, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	header := http.Header{}
	header.Set("Authorization", BearerToken(token))

	body, err := c.get(ctx, c.base+"/v2/styles/"+url.PathEscape(feedID), header)
	if err != nil {
		return "", err
	}

	var docs []styleDoc
	if err := json.Unmarshal(body, &docs); err != nil {
		return "", fmt.Errorf("describe %s: %w: %w", feedID, ErrMalformed, err)
	}
	if len(docs) == 0 || len(docs[0].MapBoxStyle.Layers) == 0 {
		return "", fmt.Errorf("describe %s: %w: no style layers", feedID, ErrMalformed)
	}
	name, _ := docs[0].MapBoxStyle.Layers[0]["source-layer"].(string)
	if name == "" {
		return "", fmt.Errorf("describe %s: %w: no source-layer", feedID, ErrMalformed)
	}
	return name, nil
}

// TileURL returns the vector tile template of a feed's tile set. The token
// goes in the query string without its "Bearer " prefix.
func (c *Client) TileURL(feedID, tileSetID, token string) string {
	return fmt.Sprintf("%s/v2/tiles/%s/%s/{z}/{x}/{y}.pbf?token=%s",
		c.base, url.PathEscape(feedID), url.PathEscape(tileSetID), url.QueryEscape(RawToken(token)))
}

// FetchFeatureCollection downloads GeoJSON from target. Both a plain
// FeatureCollection and a {"data": [features]} envelope are accepted.
func (c *Client) FetchFeatureCollection(ctx context.Context, target string) (*geojson.FeatureCollection, error) {
	body, err := c.get(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []*geojson.Feature `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		fc := geojson.NewFeatureCollection()
		for _, f := range envelope.Data {
			if f != nil {
				fc.Append(f)
			}
		}
		return fc, nil
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("features from %s: %w: %w", redact(target), ErrMalformed, err)
	}
	return fc, nil
}

// redact drops the query string, which may carry a token.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
