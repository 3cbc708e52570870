// Package polymarket adapts the Polymarket Gamma API as the prediction-market source.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CourtArb/internal/domain/models"
	drepo "CourtArb/internal/domain/repository"
	"CourtArb/internal/service/upstream"
	xhttp "CourtArb/pkg/http"
	"CourtArb/pkg/util"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://gamma-api.polymarket.com"

	defaultRPS      = 10.0
	defaultTimeout  = 8 * time.Second
	defaultPageSize = 100
	defaultMaxPages = 5
)

var _ drepo.MarketSource = (*Client)(nil)

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

// WithPaging bounds how many events are pulled per call.
func WithPaging(pageSize, maxPages int) Option {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// Client is a read-only Gamma client.
type Client struct {
	baseURL  string
	http     *xhttp.Client
	limiter  *rate.Limiter
	pageSize int
	maxPages int
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		http:     xhttp.NewClient(xhttp.WithTimeout(defaultTimeout), xhttp.WithUserAgent("courtarb/1.0")),
		limiter:  upstream.NewLimiter(defaultRPS, 0),
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOpenMarkets returns active, unclosed market-events tagged sportTag.
// Markets whose outcome arrays cannot be decoded are dropped from their event.
func (c *Client) ListOpenMarkets(ctx context.Context, sportTag string) ([]models.RawMarketEvent, error) {
	const op = "polymarket events"
	if sportTag == "" {
		return nil, upstream.Shape(op, "empty sport tag")
	}

	var out []models.RawMarketEvent
	for page := 0; page < c.maxPages; page++ {
		params := url.Values{
			"tag_slug": {sportTag},
			"active":   {"true"},
			"closed":   {"false"},
			"limit":    {strconv.Itoa(c.pageSize)},
			"offset":   {strconv.Itoa(page * c.pageSize)},
		}
		if err := upstream.Wait(ctx, c.limiter, op); err != nil {
			return nil, err
		}
		var events []gammaEvent
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + "/events",
			QueryParams: params,
		}, &events)
		if err != nil {
			return nil, upstream.Classify(op, err)
		}

		for _, ev := range events {
			out = append(out, toRawEvent(ev))
		}
		if len(events) < c.pageSize {
			break
		}
	}
	return out, nil
}

func toRawEvent(ev gammaEvent) models.RawMarketEvent {
	start, _ := util.ParseTime(ev.StartDate)
	end, _ := util.ParseTime(ev.EndDate)
	raw := models.RawMarketEvent{
		ID:        ev.ID,
		Slug:      ev.Slug,
		Title:     ev.Title,
		StartDate: start,
		EndDate:   end,
		Active:    ev.Active,
		Closed:    ev.Closed,
		Archived:  ev.Archived,
		Liquidity: ev.Liquidity.InexactFloat64(),
		Volume:    ev.Volume.InexactFloat64(),
	}
	for _, m := range ev.Markets {
		rm, err := toRawMarket(m)
		if err != nil {
			continue
		}
		raw.Markets = append(raw.Markets, rm)
	}
	return raw
}

func toRawMarket(m gammaMarket) (models.RawMarket, error) {
	outcomes, err := DecodeOutcomes(m.OutcomesRaw)
	if err != nil {
		return models.RawMarket{}, err
	}
	prices, err := DecodePrices(m.OutcomePricesRaw)
	if err != nil {
		return models.RawMarket{}, err
	}
	if len(outcomes) != len(prices) {
		return models.RawMarket{}, fmt.Errorf("market %s: %d outcomes vs %d prices: %w",
			m.ID, len(outcomes), len(prices), models.ErrDataShape)
	}
	end, _ := util.ParseTime(m.EndDate)
	return models.RawMarket{
		ID:        m.ID,
		Question:  m.Question,
		Slug:      m.Slug,
		Outcomes:  outcomes,
		Prices:    prices,
		Liquidity: m.Liquidity.InexactFloat64(),
		Volume:    m.Volume.InexactFloat64(),
		EndDate:   end,
		Closed:    m.Closed,
	}, nil
}

// DecodeOutcomes parses a JSON-encoded string array of outcome labels.
func DecodeOutcomes(raw string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("outcomes %q: %w: %w", raw, models.ErrDataShape, err)
	}
	for _, o := range out {
		if strings.TrimSpace(o) == "" {
			return nil, fmt.Errorf("outcomes %q: empty label: %w", raw, models.ErrDataShape)
		}
	}
	return out, nil
}

// DecodePrices parses a JSON-encoded array of price strings into fractions.
// Every price must lie in [0,1].
func DecodePrices(raw string) ([]float64, error) {
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, fmt.Errorf("prices %q: %w: %w", raw, models.ErrDataShape, err)
	}
	one := decimal.NewFromInt(1)
	out := make([]float64, 0, len(strs))
	for _, s := range strs {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("price %q: %w: %w", s, models.ErrDataShape, err)
		}
		if d.IsNegative() || d.GreaterThan(one) {
			return nil, fmt.Errorf("price %q out of range: %w", s, models.ErrDataShape)
		}
		out = append(out, d.InexactFloat64())
	}
	return out, nil
}
