package kalshi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"KalshiFlow/internal/domain/models"
	drepo "KalshiFlow/internal/domain/repository"
	dservice "KalshiFlow/internal/domain/service"
	xhttp "KalshiFlow/pkg/http"
	applogger "KalshiFlow/pkg/logger"
)

const (
	DefaultBaseURL     = "https://api.elections.kalshi.com"
	DefaultMarketsPath = "/trade-api/v2/markets"
	DefaultPageLimit   = 1000
	DefaultMaxPages    = 3
)

// marketsPage is one page of GET /markets.
type marketsPage struct {
	Markets []models.RawMarket `json:"markets"`
	Cursor  string             `json:"cursor"`
}

// Client retrieves markets page by page. Pages are fetched sequentially since
// each request needs the cursor of the previous one.
type Client struct {
	http        *xhttp.Client
	signer      dservice.RequestSigner
	metrics     drepo.Metrics
	log         *applogger.Logger
	baseURL     string
	marketsPath string
	pageLimit   int
	maxPages    int
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. the demo environment.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithMarketsPath overrides the markets endpoint path.
func WithMarketsPath(path string) Option {
	return func(c *Client) {
		c.marketsPath = path
	}
}

// WithPaging sets the page size and the page cap.
func WithPaging(limit, maxPages int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.pageLimit = limit
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m drepo.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a market source over httpClient. Requests are signed by signer.
func NewClient(httpClient *xhttp.Client, signer dservice.RequestSigner, opts ...Option) *Client {
	c := &Client{
		http:        httpClient,
		signer:      signer,
		log:         applogger.NewNop(),
		baseURL:     DefaultBaseURL,
		marketsPath: DefaultMarketsPath,
		pageLimit:   DefaultPageLimit,
		maxPages:    DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ drepo.MarketSource = (*Client)(nil)

// FetchAll walks up to maxPages pages and returns everything accumulated. A
// signing, transport or status failure ends the walk early; what was gathered
// so far is still returned and the cause is kept in StopErr.
func (c *Client) FetchAll(ctx context.Context) models.FetchResult {
	start := time.Now()
	var (
		res    models.FetchResult
		cursor string
	)

	for res.Pages < c.maxPages {
		path := c.pagePath(cursor)

		headers, err := c.signer.Sign(xhttp.MethodGet, path)
		if err != nil {
			res.StopErr = err
			c.recordError(StopReason(err))
			c.log.Error("could not sign request, check API keys", applogger.Error(err))
			break
		}

		page, err := c.fetchPage(ctx, path, headers)
		if err != nil {
			res.StopErr = err
			c.recordError(StopReason(err))
			c.log.Error("fetch markets page failed",
				applogger.Int("page", res.Pages+1),
				applogger.String("reason", StopReason(err)),
				applogger.Error(err),
			)
			break
		}

		res.Markets = append(res.Markets, page.Markets...)
		res.Pages++
		cursor = page.Cursor
		c.recordPage()

		c.log.Info("fetched markets page",
			applogger.Int("page", res.Pages),
			applogger.Int("markets", len(page.Markets)),
			applogger.Int("total", len(res.Markets)),
		)

		if cursor == "" {
			break
		}
	}

	reason := StopReason(res.StopErr)
	if res.StopErr == nil && cursor != "" {
		reason = "page_cap"
	}
	res.StopReason = reason
	res.SigningFailed = IsSigningFailure(res.StopErr)
	if c.metrics != nil {
		c.metrics.RecordFetchStop(reason)
		c.metrics.RecordLatency("fetch_markets", time.Since(start).Seconds())
	}
	c.log.Info("markets fetch finished",
		applogger.Int("total", len(res.Markets)),
		applogger.Int("pages", res.Pages),
		applogger.String("stop", reason),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return res
}

func (c *Client) fetchPage(ctx context.Context, path string, headers models.SignedHeaders) (*marketsPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.http.Timeout())
	defer cancel()

	var page marketsPage
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + path,
		Headers: headers,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// pagePath is the request path including the query; the signer drops the query.
func (c *Client) pagePath(cursor string) string {
	path := c.marketsPath + "?limit=" + strconv.Itoa(c.pageLimit)
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}
	return path
}

func (c *Client) recordPage() {
	if c.metrics != nil {
		c.metrics.RecordPageFetched()
	}
}

func (c *Client) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}

// StopReason classifies why a fetch ended, for logs and metrics.
func StopReason(err error) string {
	var se *xhttp.StatusError
	switch {
	case err == nil:
		return "exhausted"
	case errors.Is(err, ErrNoCredentials):
		return "no_credentials"
	case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrSigning):
		return "signing"
	case errors.As(err, &se):
		return "status_" + strconv.Itoa(se.StatusCode)
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}

// IsSigningFailure reports whether err came from the signer rather than the network.
func IsSigningFailure(err error) bool {
	return errors.Is(err, ErrNoCredentials) || errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrSigning)
}

// String describes the client for the startup log.
func (c *Client) String() string {
	return fmt.Sprintf("kalshi(%s%s limit=%d pages=%d)", c.baseURL, c.marketsPath, c.pageLimit, c.maxPages)
}
