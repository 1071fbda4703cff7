package sampling

import (
	"fmt"

	"codeberg.org/snonux/pinphotos/internal/errs"
)

// DefaultMaxPage caps how deep into the result pages a pin search reaches
const DefaultMaxPage = 30

// PageSelector chooses a random result page
type PageSelector struct {
	MaxPage int
	rand    *Rand
}

// NewPageSelector creates a selector capped at maxPage. A non-positive maxPage uses DefaultMaxPage.
func NewPageSelector(r *Rand, maxPage int) *PageSelector {
	if maxPage <= 0 {
		maxPage = DefaultMaxPage
	}
	if r == nil {
		r = NewTimeSeededRand()
	}
	return &PageSelector{MaxPage: maxPage, rand: r}
}

// Select returns a page number uniformly drawn from [1, min(totalPages, MaxPage)]
func (s *PageSelector) Select(totalPages int) (int, error) {
	if totalPages <= 0 {
		return 0, errs.NoResults(fmt.Sprintf("this location has no photos (pages=%d)", totalPages))
	}
	limit := min(totalPages, s.MaxPage)
	return s.rand.Intn(limit) + 1, nil
}
