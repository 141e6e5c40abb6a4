// Package bridge talks to the session and chat REST API.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	pkgerrors "treeview-ai/pkg/errors"
)

const maxBodyBytes = 8 << 20

// Recorder receives one sample per API call.
type Recorder interface {
	RecordBridgeCall(call, status string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordBridgeCall(string, string, time.Duration) {}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// Circuit breaker
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// Client performs authenticated JSON calls. Calls go through a circuit
// breaker; concurrent identical GETs share one request.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	logger  *zap.Logger
	metrics Recorder
}

// NewClient creates a client. metrics may be nil.
func NewClient(cfg ClientConfig, logger *zap.Logger, metrics Recorder) *Client {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: metrics,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "treeview-api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// A missing resource is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsNotFound(err)
		},
	})
	return c
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// get fetches path into out. Concurrent calls for the same path share one
// request. The shared request is not tied to any single caller's context,
// only to the client timeout; a caller whose ctx ends stops waiting for it.
func (c *Client) get(ctx context.Context, call, path string, out any) error {
	ch := c.group.DoChan(path, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.roundTrip(flightCtx, call, http.MethodGet, path, nil)
	})

	select {
	case <-ctx.Done():
		return pkgerrors.NewTransient(call+": request cancelled", ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("shared in-flight request", zap.String("path", path))
		}
		if res.Err != nil {
			return res.Err
		}
		return decode(call, res.Val.([]byte), out)
	}
}

// send issues a request with a JSON body and decodes the response into out
// when out is not nil. The raw response body is returned as well.
func (c *Client) send(ctx context.Context, call, method, path string, in, out any) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, pkgerrors.NewInternal("encode request", err)
	}
	raw, err := c.roundTrip(ctx, call, method, path, body)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := decode(call, raw, out); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, call, method, path string, body []byte) ([]byte, error) {
	start := time.Now()
	v, err := c.breaker.Execute(func() (any, error) {
		return c.execute(ctx, method, path, body)
	})
	status := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "open"
		err = pkgerrors.NewTransient(call+": service temporarily unavailable", err)
	case pkgerrors.IsNotFound(err):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	c.metrics.RecordBridgeCall(call, status, time.Since(start))

	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			c.logger.Warn("api call failed",
				zap.String("call", call),
				zap.String("method", method),
				zap.String("path", path),
				zap.Error(err))
		}
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) execute(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.NewInternal("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.NewTransient(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, pkgerrors.NewTransient("read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("%s not found", path))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, pkgerrors.NewTransient(
			fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode),
			errors.New(snippet(data)))
	}
	return data, nil
}

func decode(call string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.NewTransient(call+": unexpected response body", err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
