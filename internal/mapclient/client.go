// Package mapclient calls the map query interface over HTTP.
package mapclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"eventmap/core-go/internal/mapitem"
)

const (
	mapPath         = "/api/v1/events/map"
	maxResponseSize = 16 << 20
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("map query failed: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("map query failed: %d", e.StatusCode)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// MaxConsecutiveFailures opens the breaker; OpenTimeout is how long it stays open.
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

type Client struct {
	log     zerolog.Logger
	baseURL *url.URL
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]mapitem.Item]
}

func New(log zerolog.Logger, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid map api url %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[[]mapitem.Item](gobreaker.Settings{
		Name:        "map-api",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A superseded query is cancelled by its caller; that says nothing about the server.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("map api circuit breaker state change")
		},
	})

	return &Client{log: log, baseURL: base, http: hc, cb: cb}, nil
}

// Query runs one map query and returns its items.
func (c *Client) Query(ctx context.Context, q mapitem.Query) ([]mapitem.Item, error) {
	return c.cb.Execute(func() ([]mapitem.Item, error) {
		return c.do(ctx, q)
	})
}

func (c *Client) do(ctx context.Context, q mapitem.Query) ([]mapitem.Item, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + mapPath
	u.RawQuery = q.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseSize)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(body).Decode(&envelope); err == nil {
			se.Code = envelope.Error.Code
			se.Message = envelope.Error.Message
		}
		return nil, se
	}

	var out mapitem.Response
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode map response: %w", err)
	}
	if out.Items == nil {
		out.Items = []mapitem.Item{}
	}
	return out.Items, nil
}
