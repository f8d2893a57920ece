package persistence

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

type HTTPOptions struct {
	Timeout time.Duration
	// FailuresToOpen consecutive connection failures open the breaker for OpenFor.
	FailuresToOpen uint32
	OpenFor        time.Duration
	Logger         *log.Logger
}

// HTTPSink posts every tuple as a form (harvester, pot, humidity) to a data
// endpoint. Tuples are fire-and-forget: a non-2xx answer is only logged, a
// connection failure fails the write. A circuit breaker makes a dead
// endpoint fail fast.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *log.Logger
}

func NewHTTPSink(endpoint string, opts HTTPOptions) *HTTPSink {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FailuresToOpen == 0 {
		opts.FailuresToOpen = 3
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	logger := opts.Logger
	st := gobreaker.Settings{
		Name:        "persist",
		MaxRequests: 1,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.FailuresToOpen
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("persistence: breaker %s %s -> %s", name, from, to)
		},
	}
	return &HTTPSink{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: opts.Timeout},
		breaker:  gobreaker.NewCircuitBreaker(st),
		logger:   logger,
	}
}

func (s *HTTPSink) Write(ctx context.Context, readings []model.Reading) error {
	for _, r := range readings {
		if err := s.post(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *HTTPSink) post(ctx context.Context, r model.Reading) error {
	form := url.Values{}
	form.Set("harvester", strconv.Itoa(r.Harvester))
	form.Set("pot", strconv.Itoa(r.Pot))
	form.Set("humidity", strconv.Itoa(int(r.Moisture)))

	status, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := s.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	})
	if err != nil {
		return fmt.Errorf("post h%d p%d: %w: %w", r.Harvester, r.Pot, ErrConnection, err)
	}
	if code := status.(int); code < 200 || code >= 300 {
		s.logger.Printf("persistence: h%d p%d answered %d", r.Harvester, r.Pot, code)
	}
	return nil
}
