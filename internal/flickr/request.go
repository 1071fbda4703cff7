package flickr

import (
	"fmt"
	"net/url"
	"strconv"

	"codeberg.org/snonux/pinphotos/internal/geo"
)

const (
	DefaultEndpoint = "https://api.flickr.com/services/rest"
	SearchMethod    = "flickr.photos.search"
	DefaultPerPage  = 30
)

// Parameter keys
const (
	ParamMethod         = "method"
	ParamAPIKey         = "api_key"
	ParamBoundingBox    = "bbox"
	ParamSafeSearch     = "safe_search"
	ParamExtras         = "extras"
	ParamFormat         = "format"
	ParamPerPage        = "per_page"
	ParamNoJSONCallback = "nojsoncallback"
	ParamPage           = "page"
)

// Parameter values
const (
	UseSafeSearch       = "1"
	ExtraMediumURL      = "url_m"
	ResponseFormat      = "json"
	DisableJSONCallback = "1"
)

// Request is the parameter set of one search call. Values are stored as
// strings; encoding sorts keys so equal requests encode identically.
type Request struct {
	params url.Values
}

// RequestBuilder holds the per-application parts of a search request
type RequestBuilder struct {
	APIKey  string
	PerPage int
}

// NewRequestBuilder creates a builder; a non-positive perPage uses DefaultPerPage
func NewRequestBuilder(apiKey string, perPage int) *RequestBuilder {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &RequestBuilder{APIKey: apiKey, PerPage: perPage}
}

// Search returns the base photo search request for a bounding box, without a page
func (b *RequestBuilder) Search(bbox geo.BoundingBox) *Request {
	r := &Request{params: url.Values{}}
	r.Set(ParamMethod, SearchMethod)
	r.Set(ParamAPIKey, b.APIKey)
	r.Set(ParamBoundingBox, bbox.String())
	r.Set(ParamSafeSearch, UseSafeSearch)
	r.Set(ParamExtras, ExtraMediumURL)
	r.Set(ParamFormat, ResponseFormat)
	r.Set(ParamPerPage, b.PerPage)
	r.Set(ParamNoJSONCallback, DisableJSONCallback)
	return r
}

// Set stores value under key, stringified
func (r *Request) Set(key string, value any) {
	r.params.Set(key, fmt.Sprint(value))
}

// Get returns the value for key or ""
func (r *Request) Get(key string) string {
	return r.params.Get(key)
}

// WithPage returns a copy of r that requests the given results page
func (r *Request) WithPage(page int) *Request {
	c := &Request{params: url.Values{}}
	for k, v := range r.params {
		c.params[k] = append([]string(nil), v...)
	}
	c.Set(ParamPage, page)
	return c
}

// Page returns the requested page, if any
func (r *Request) Page() (int, bool) {
	v := r.params.Get(ParamPage)
	if v == "" {
		return 0, false
	}
	page, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return page, true
}

// Encode returns the URL-encoded query string with keys in sorted order
func (r *Request) Encode() string {
	return r.params.Encode()
}

// URL resolves the request against endpoint (scheme, host and path)
func (r *Request) URL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: scheme and host required", endpoint)
	}
	u.RawQuery = r.Encode()
	return u.String(), nil
}
