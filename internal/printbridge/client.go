// Package printbridge talks to the file opener running on the print floor
// machine. It is best effort: when the bridge is down only the "open file"
// convenience is lost.
package printbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fulfillment-backend/internal/apperror"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrUnavailable = errors.New("print bridge is unavailable")
	ErrOpenFailed  = errors.New("print bridge could not open the file")
)

func init() {
	apperror.Register(ErrUnavailable, apperror.CodeServiceUnavailable, http.StatusServiceUnavailable)
	apperror.Register(ErrOpenFailed, apperror.CodeServiceUnavailable, http.StatusBadGateway)
}

// Bridge is what handlers need from the print floor machine.
type Bridge interface {
	IsConnected(ctx context.Context) bool
	CheckFileExists(ctx context.Context, path string) (bool, error)
	OpenFile(ctx context.Context, path string) error
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// New returns a client for the bridge at baseURL. Three consecutive failures
// open the breaker for 30s so a dead bridge is not hammered per request.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "print-bridge",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("print bridge breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

func (c *Client) IsConnected(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err == nil
}

func (c *Client) CheckFileExists(ctx context.Context, path string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	status, err := c.do(ctx, http.MethodGet, "/files/exists?path="+url.QueryEscape(path), nil, &out)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (c *Client) OpenFile(ctx context.Context, path string) error {
	status, err := c.do(ctx, http.MethodPost, "/files/open", map[string]string{"path": path}, nil)
	if err != nil {
		if status != 0 {
			return fmt.Errorf("%w: %s", ErrOpenFailed, path)
		}
		return err
	}
	return nil
}

// do sends one request through the breaker. Only transport errors and 5xx
// answers count against the breaker; a 4xx is the bridge saying no. The
// returned status is 0 when no answer came back.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("%w: not configured", ErrUnavailable)
	}
	var status int
	_, err := c.cb.Execute(func() (interface{}, error) {
		var reader *bytes.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("bridge answered %d", resp.StatusCode)
		}
		if out != nil && resp.StatusCode < http.StatusBadRequest {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode bridge response: %w", err)
			}
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, fmt.Errorf("%w: breaker open", ErrUnavailable)
	}
	if err != nil {
		c.log.Warn("print bridge request failed", zap.String("path", path), zap.Error(err))
		if status >= http.StatusInternalServerError {
			return status, fmt.Errorf("%w: %v", ErrOpenFailed, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status >= http.StatusBadRequest {
		return status, fmt.Errorf("bridge answered %d", status)
	}
	return status, nil
}
