// Package espn adapts the ESPN site API: the scoreboard is the primary
// schedule/score source and the game summary is the probability source.
package espn

import (
	"context"
	"net/url"
	"strings"
	"time"

	"CourtArb/internal/service/upstream"
	xhttp "CourtArb/pkg/http"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/nba"

	defaultRPS     = 5.0
	defaultTimeout = 8 * time.Second
)

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = upstream.NewLimiter(rps, burst)
	}
}

func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLocation sets the calendar used to turn a date into the scoreboard's
// YYYYMMDD parameter. NBA schedules are published in US Eastern time.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// Client serves both the scoreboard and summary endpoints.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *rate.Limiter
	loc     *time.Location
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(defaultTimeout), xhttp.WithUserAgent("courtarb/1.0")),
		limiter: upstream.NewLimiter(defaultRPS, 0),
		loc:     easternOrUTC(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, dest interface{}) error {
	if err := upstream.Wait(ctx, c.limiter, op); err != nil {
		return err
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}, dest)
	return upstream.Classify(op, err)
}

func easternOrUTC() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}
