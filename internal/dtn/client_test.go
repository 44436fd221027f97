package dtn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", RequestsPerSecond: 1000, Burst: 100})
}

func TestDescribeLayer(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`[{"mapBoxStyle":{"layers":[{"id":"x","source-layer":"wind_barbs_10m"}]}}]`))
	})

	name, err := c.DescribeLayer(context.Background(), "fcst-manta-wind-symbol-grid", "abc")
	require.NoError(t, err)
	assert.Equal(t, "wind_barbs_10m", name)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "/v2/styles/fcst-manta-wind-symbol-grid", gotPath)
}

func TestDescribeLayer_Malformed(t *testing.T) {
	bodies := map[string]string{
		"not json":        `<html>`,
		"empty list":      `[]`,
		"no layers":       `[{"mapBoxStyle":{"layers":[]}}]`,
		"no source-layer": `[{"mapBoxStyle":{"layers":[{"id":"x"}]}}]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.DescribeLayer(context.Background(), "feed", "Bearer abc")
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDescribeLayer_Status(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.DescribeLayer(context.Background(), "feed", "abc")
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "401")
}

func TestDescribeLayer_NoToken(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	_, err := c.DescribeLayer(context.Background(), "feed", "  ")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Zero(t, calls.Load())
}

func TestTileURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "https://tiles.example"})
	assert.Equal(t,
		"https://tiles.example/v2/tiles/fcst-feed/tileset-1/{z}/{x}/{y}.pbf?token=abc",
		c.TileURL("fcst-feed", "tileset-1", "Bearer abc"))
	assert.Equal(t,
		"https://tiles.example/v2/tiles/f/t/{z}/{x}/{y}.pbf?token=abc",
		c.TileURL("f", "t", "abc"))
}

func TestFetchFeatureCollection(t *testing.T) {
	const feature = `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"name":"North Sea"}}`
	tests := map[string]string{
		"envelope":          `{"data":[` + feature + `]}`,
		"featurecollection": `{"type":"FeatureCollection","features":[` + feature + `]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			fc, err := c.FetchFeatureCollection(context.Background(), c.BaseURL()+"/api/eca")
			require.NoError(t, err)
			require.Len(t, fc.Features, 1)
			assert.Equal(t, "North Sea", fc.Features[0].Properties.MustString("name"))
		})
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"Point"}`))
	})
	_, err := c.FetchFeatureCollection(context.Background(), c.BaseURL()+"/api/eca")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := c.DescribeLayer(context.Background(), "feed", "abc")
		require.ErrorIs(t, err, ErrStatus)
	}
	require.Equal(t, gobreaker.StateOpen, c.BreakerState())

	_, err := c.DescribeLayer(context.Background(), "feed", "abc")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), calls.Load())
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			<-r.Context().Done()
			return
		}
		w.Write([]byte(`[{"mapBoxStyle":{"layers":[{"id":"x","source-layer":"swell"}]}}]`))
	})

	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(5*time.Millisecond, cancel)
		_, err := c.DescribeLayer(ctx, "feed", "abc")
		require.ErrorIs(t, err, context.Canceled)
		cancel()
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())

	slow.Store(false)
	name, err := c.DescribeLayer(context.Background(), "feed", "abc")
	require.NoError(t, err)
	assert.Equal(t, "swell", name)
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchFeatureCollection(ctx, c.BaseURL()+"/x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenStore(t *testing.T) {
	s := NewTokenStore("")
	assert.False(t, s.Present())
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)

	s.Set(" Bearer xyz ")
	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer xyz", tok)
	assert.Equal(t, "xyz", RawToken(tok))
	assert.Equal(t, "Bearer xyz", BearerToken("xyz"))
	assert.Equal(t, "Bearer xyz", BearerToken(tok))
}
