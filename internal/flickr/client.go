package flickr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bluele/gcache"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"codeberg.org/snonux/pinphotos/internal/errs"
	"codeberg.org/snonux/pinphotos/internal/logging"
)

const (
	flickrTimeout = 30 * time.Second

	keyStatus  = "stat"
	keyPhotos  = "photos"
	keyPhoto   = "photo"
	keyPages   = "pages"
	keyCode    = "code"
	keyMessage = "message"
	statusOK   = "ok"
)

// Config configures the search client
type Config struct {
	Endpoint string
	Timeout  time.Duration

	// CacheSize is the number of successful responses kept, keyed by request URL. 0 disables caching.
	CacheSize int
	CacheTTL  time.Duration

	// Circuit breaker settings for the search endpoint
	BreakerMinRequests      uint32
	BreakerFailureThreshold float64
	BreakerTimeout          time.Duration
}

// DefaultConfig returns sensible defaults for the public Flickr endpoint
func DefaultConfig() *Config {
	return &Config{
		Endpoint:                DefaultEndpoint,
		Timeout:                 flickrTimeout,
		CacheSize:               128,
		CacheTTL:                5 * time.Minute,
		BreakerMinRequests:      5,
		BreakerFailureThreshold: 0.8,
		BreakerTimeout:          60 * time.Second,
	}
}

// Client issues search requests and downloads photos
type Client struct {
	config     *Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      gcache.Cache
	logger     *zap.Logger
}

// NewClient creates a client. A nil httpClient gets one with the configured timeout.
func NewClient(config *Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = flickrTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	logger = logging.OrNop(logger).Named("flickr")

	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "flickr-search",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Only failures of the service itself count; a well-formed "no such
		// thing" answer is a healthy response.
		IsSuccessful: func(err error) bool {
			// an abandoned search says nothing about the service
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			switch errs.KindOf(err) {
			case errs.KindTransport, errs.KindHTTPStatus, errs.KindEmptyBody, errs.KindMalformedResponse:
				return false
			}
			return true
		},
	})

	if config.CacheSize > 0 {
		b := gcache.New(config.CacheSize).LRU()
		if config.CacheTTL > 0 {
			b = b.Expiration(config.CacheTTL)
		}
		c.cache = b.Build()
	}

	return c
}

// Name returns the name of the search provider
func (c *Client) Name() string {
	return "flickr"
}

// Search runs req and returns the validated "photos" container
func (c *Client) Search(ctx context.Context, req *Request) (*Results, error) {
	reqURL, err := req.URL(c.config.Endpoint)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if v, err := c.cache.Get(reqURL); err == nil {
			c.logger.Debug("search cache hit", zap.String("query", redactedQuery(req)))
			return v.(*Results), nil
		}
	}

	v, err := c.breaker.Execute(func() (any, error) {
		return c.search(ctx, reqURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errs.Unavailable("flickr search temporarily unavailable").WithCause(err)
		}
		return nil, err
	}

	results := v.(*Results)
	if c.cache != nil {
		_ = c.cache.Set(reqURL, results)
	}
	return results, nil
}

func (c *Client) search(ctx context.Context, reqURL string) (*Results, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errs.Transport("search request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.HTTPStatus(fmt.Sprintf("search returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Transport("failed to read search response").WithCause(err)
	}

	return parseSearchResponse(body)
}

// parseSearchResponse applies the envelope checks in order, stopping at the first failure
func parseSearchResponse(body []byte) (*Results, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errs.EmptyBody("no data was returned by the search request")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errs.MalformedResponse("could not parse the search response as JSON").WithCause(err)
	}

	var stat string
	if raw, ok := envelope[keyStatus]; ok {
		_ = json.Unmarshal(raw, &stat)
	}
	if stat != statusOK {
		return nil, remoteAPIError(stat, envelope)
	}

	rawPhotos, ok := envelope[keyPhotos]
	if !ok {
		return nil, errs.Schema(fmt.Sprintf("cannot find key %q in search response", keyPhotos))
	}
	var container map[string]json.RawMessage
	if err := json.Unmarshal(rawPhotos, &container); err != nil || container == nil {
		return nil, errs.Schema(fmt.Sprintf("key %q is not an object", keyPhotos))
	}

	results := &Results{}
	if raw, ok := container[keyPages]; ok {
		pages, err := parseCount(raw)
		if err != nil {
			return nil, errs.Schema(fmt.Sprintf("key %q is not a number", keyPages)).WithCause(err)
		}
		results.Pages = pages
		results.HasPages = true
	}
	if raw, ok := container[keyPhoto]; ok {
		var photos []Candidate
		if err := json.Unmarshal(raw, &photos); err != nil {
			return nil, errs.Schema(fmt.Sprintf("key %q is not a list of photos", keyPhoto)).WithCause(err)
		}
		results.Photos = photos
		results.HasPhotos = true
	}

	return results, nil
}

func remoteAPIError(stat string, envelope map[string]json.RawMessage) error {
	var code int
	var message string
	if raw, ok := envelope[keyCode]; ok {
		code, _ = parseCount(raw)
	}
	if raw, ok := envelope[keyMessage]; ok {
		_ = json.Unmarshal(raw, &message)
	}
	if stat == "" {
		stat = "missing"
	}
	if message != "" {
		return errs.RemoteAPI(fmt.Sprintf("flickr API returned stat=%s (code %d): %s", stat, code, message))
	}
	return errs.RemoteAPI(fmt.Sprintf("flickr API returned stat=%s", stat))
}

// parseCount accepts both JSON numbers and numeric strings, Flickr uses either
func parseCount(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

// redactedQuery is the encoded request without the API key, for logs
func redactedQuery(req *Request) string {
	c := req.WithPage(0)
	c.params.Del(ParamAPIKey)
	if p, ok := req.Page(); ok {
		c.Set(ParamPage, p)
	} else {
		c.params.Del(ParamPage)
	}
	return c.Encode()
}
