package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// SearchPath is where FlickrServer answers search requests
const SearchPath = "/services/rest"

// FlickrServer fakes the Flickr search API and the image CDN
type FlickrServer struct {
	*httptest.Server

	mu sync.Mutex
	// Pages is reported as photos.pages on every search response
	Pages int
	// PhotosPerPage is the number of candidates returned for a paged request
	PhotosPerPage int
	// SkipURLEvery drops url_m from every n-th candidate (0 keeps all)
	SkipURLEvery int
	// SearchStatus and SearchBody, when set, replace every search response
	SearchStatus int
	SearchBody   string
	// PageBody, when set, replaces the response to paged requests only
	PageBody string
	// FailImages lists image names (e.g. "2_5.jpg") answered with 404
	FailImages map[string]bool
	// ImageData is served for every other image
	ImageData []byte

	searchRequests []string
	imageRequests  []string
}

// NewFlickrServer starts a fake server that is closed with the test
func NewFlickrServer(t *testing.T) *FlickrServer {
	t.Helper()

	f := &FlickrServer{
		Pages:         3,
		PhotosPerPage: 50,
		FailImages:    make(map[string]bool),
		ImageData:     JPEGData(),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

// Endpoint is the search endpoint to configure the client with
func (f *FlickrServer) Endpoint() string {
	return f.URL + SearchPath
}

// ImageURL returns the URL the fake serves an image name under
func (f *FlickrServer) ImageURL(name string) string {
	return f.URL + "/images/" + name
}

// SetFailImage makes the named image fail with 404
func (f *FlickrServer) SetFailImage(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailImages[name] = true
}

// SearchRequests returns the raw query strings received so far
func (f *FlickrServer) SearchRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchRequests...)
}

// RequestedPages returns the page parameter of every paged search request
func (f *FlickrServer) RequestedPages() []int {
	var pages []int
	for _, raw := range f.SearchRequests() {
		q, err := url.ParseQuery(raw)
		if err != nil {
			continue
		}
		if p, err := strconv.Atoi(q.Get("page")); err == nil {
			pages = append(pages, p)
		}
	}
	return pages
}

// ImageRequests returns the image names requested so far
func (f *FlickrServer) ImageRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.imageRequests...)
}

func (f *FlickrServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == SearchPath:
		f.handleSearch(w, r)
	case strings.HasPrefix(r.URL.Path, "/images/"):
		f.handleImage(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FlickrServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.searchRequests = append(f.searchRequests, r.URL.RawQuery)
	status, body, pageBody := f.SearchStatus, f.SearchBody, f.PageBody
	pages, perPage, skip := f.Pages, f.PhotosPerPage, f.SkipURLEvery
	f.mu.Unlock()

	page := r.URL.Query().Get("page")

	if status == 0 {
		status = http.StatusOK
	}
	if body == "" && pageBody != "" && page != "" {
		body = pageBody
	}
	if body != "" {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
		return
	}

	photos := make([]map[string]any, 0)
	if page != "" {
		for i := 0; i < perPage; i++ {
			entry := map[string]any{
				"id":    fmt.Sprintf("%s%03d", page, i),
				"title": fmt.Sprintf("photo %d on page %s", i, page),
			}
			if skip == 0 || (i+1)%skip != 0 {
				entry["url_m"] = f.ImageURL(fmt.Sprintf("%s_%d.jpg", page, i))
			}
			photos = append(photos, entry)
		}
	}

	resp := map[string]any{
		"stat": "ok",
		"photos": map[string]any{
			"page":    page,
			"pages":   pages,
			"perpage": perPage,
			"total":   strconv.Itoa(pages * perPage),
			"photo":   photos,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (f *FlickrServer) handleImage(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/images/")

	f.mu.Lock()
	f.imageRequests = append(f.imageRequests, name)
	fail := f.FailImages[name]
	data := f.ImageData
	f.mu.Unlock()

	if fail {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// JPEGData returns the first bytes of a JPEG file, enough for type detection
func JPEGData() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00, 0x01}
}

// PNGData returns a PNG signature and IHDR chunk header
func PNGData() []byte {
	return []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}
}
