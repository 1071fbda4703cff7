package flickr

// Candidate is one photo descriptor from a search page. Only the fields
// the pipeline needs are typed; the rest stay as decoded JSON.
type Candidate map[string]any

// MediumURL returns the url_m field if it is a non-empty string
func (c Candidate) MediumURL() (string, bool) {
	v, ok := c[ExtraMediumURL].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Results is the "photos" container of a successful search response.
// A page-count query fills Pages; a page query fills Photos as well.
type Results struct {
	Pages     int
	HasPages  bool
	Photos    []Candidate
	HasPhotos bool
}
