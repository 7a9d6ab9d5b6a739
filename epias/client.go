// Package epias talks to the EPIAS transparency platform for Turkish day-ahead
// prices, real-time generation and real-time consumption.
package epias

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/samet0demir/enerji-piyasasi/config"
)

const (
	pricePath       = "v1/markets/dam/data/mcp"
	generationPath  = "v1/generation/data/realtime-generation"
	consumptionPath = "v1/consumption/data/realtime-consumption"

	requestTimeLayout = "2006-01-02T15:04:05-07:00"
)

var ErrNoCredentials = errors.New("epias: username and password are required")

// HTTPStatusError represents an error due to a non-200 HTTP status code
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	msg := "non-200 status code: " + http.StatusText(e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

type Options struct {
	BaseURL        string
	AuthURL        string
	Username       string
	Password       string
	RequestsPerSec int
	Timeout        time.Duration
	MaxRetryTime   time.Duration
	Location       *time.Location
	HTTPClient     *http.Client
}

// Client is safe for concurrent use. The ticket granting ticket is obtained
// lazily and renewed after a 401.
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	baseURL      string
	authURL      string
	username     string
	password     string
	loc          *time.Location
	maxRetryTime time.Duration
	log          zerolog.Logger

	mu  sync.Mutex
	tgt string
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.MaxRetryTime == 0 {
		opts.MaxRetryTime = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		httpClient:   hc,
		limiter:      rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSec)), opts.RequestsPerSec),
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		authURL:      opts.AuthURL,
		username:     opts.Username,
		password:     opts.Password,
		loc:          opts.Location,
		maxRetryTime: opts.MaxRetryTime,
		log:          log.With().Str("component", "epias").Logger(),
	}
}

func NewFromConfig(cfg config.EPIASConfig, loc *time.Location) *Client {
	return New(Options{
		BaseURL:        cfg.BaseURL,
		AuthURL:        cfg.AuthURL,
		Username:       cfg.Username,
		Password:       cfg.Password,
		RequestsPerSec: cfg.RequestsPerSec,
		Location:       loc,
	})
}

// Login requests a new ticket granting ticket from the CAS server. The
// ticket is the last path segment of the Location header of a 201 reply.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.username == "" || c.password == "" {
		return "", ErrNoCredentials
	}
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("epias login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("epias login: %w", statusError(resp))
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", errors.New("epias login: response has no Location header")
	}
	tgt := path.Base(strings.TrimRight(loc, "/"))

	c.mu.Lock()
	c.tgt = tgt
	c.mu.Unlock()
	c.log.Debug().Msg("ticket granting ticket issued")
	return tgt, nil
}

func (c *Client) ticket(ctx context.Context) (string, error) {
	c.mu.Lock()
	tgt := c.tgt
	c.mu.Unlock()
	if tgt != "" {
		return tgt, nil
	}
	return c.Login(ctx)
}

func (c *Client) dropTicket() {
	c.mu.Lock()
	c.tgt = ""
	c.mu.Unlock()
}

func statusError(resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

type rangeRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// post sends body to endpoint with rate limiting and exponential backoff,
// then decodes the JSON reply into out. 4xx replies other than 401 and 429
// are not retried.
func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	target := c.baseURL + "/" + endpoint

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		tgt, err := c.ticket(ctx)
		if err != nil {
			if errors.Is(err, ErrNoCredentials) {
				return backoff.Permanent(err)
			}
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("TGT", tgt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			se := statusError(resp)
			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				c.dropTicket()
				return se
			case resp.StatusCode == http.StatusTooManyRequests:
				return se
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return backoff.Permanent(se)
			}
			return se
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", endpoint, err))
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.maxRetryTime
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Str("endpoint", endpoint).Dur("retry_in", wait).Msg("request failed")
	}
	return backoff.RetryNotify(operation, backoff.WithContext(strategy, ctx), notify)
}

func (c *Client) rangeBody(start, end time.Time) rangeRequest {
	day := func(t time.Time) string {
		t = t.In(c.loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc).Format(requestTimeLayout)
	}
	return rangeRequest{StartDate: day(start), EndDate: day(end)}
}
