package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrNotConfigured is returned by an upstream without a base URL.
var ErrNotConfigured = errors.New("upstream not configured")

// Upstream incapsula chiamate HTTP con Circuit Breaker
type Upstream struct {
	name    string
	base    string
	path    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewUpstream(name, base, path string, timeout time.Duration, breaker *gobreaker.CircuitBreaker) *Upstream {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	return &Upstream{
		name:    name,
		base:    base,
		path:    path,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// GetJSON decodes the upstream's body into out. Any status outside 2xx
// counts as a failure, unless accept lists it.
func (u *Upstream) GetJSON(ctx context.Context, out any, accept ...int) error {
	if u == nil || u.base == "" {
		return ErrNotConfigured
	}
	_, err := u.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base+u.path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request error: %w", u.name, err)
		}
		defer resp.Body.Close()

		if !okStatus(resp.StatusCode, accept) {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("%s upstream status %d", u.name, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s decode error: %w", u.name, err)
		}
		return nil, nil
	})
	return err
}

// State reports the breaker state for logs and the dashboard.
func (u *Upstream) State() string {
	if u == nil || u.base == "" {
		return "disabled"
	}
	return u.breaker.State().String()
}

func okStatus(code int, accept []int) bool {
	if code >= 200 && code < 300 {
		return true
	}
	for _, a := range accept {
		if code == a {
			return true
		}
	}
	return false
}
