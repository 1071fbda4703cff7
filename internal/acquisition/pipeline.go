package acquisition

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"codeberg.org/snonux/pinphotos/internal/errs"
	"codeberg.org/snonux/pinphotos/internal/flickr"
	"codeberg.org/snonux/pinphotos/internal/geo"
	"codeberg.org/snonux/pinphotos/internal/logging"
	"codeberg.org/snonux/pinphotos/internal/sampling"
	"codeberg.org/snonux/pinphotos/internal/store"
)

// DefaultPhotosPerPin is the maximum number of photos created per acquisition
const DefaultPhotosPerPin = 30

// Searcher runs a photo search request
type Searcher interface {
	Search(ctx context.Context, req *flickr.Request) (*flickr.Results, error)
}

// Config holds the acquisition policy
type Config struct {
	Extent       geo.Extent
	PhotosPerPin int
	MaxPage      int
}

// DefaultConfig returns the default acquisition policy
func DefaultConfig() *Config {
	return &Config{
		Extent:       geo.DefaultExtent(),
		PhotosPerPin: DefaultPhotosPerPin,
		MaxPage:      sampling.DefaultMaxPage,
	}
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithConfig replaces the default acquisition policy
func WithConfig(config *Config) Option {
	return func(p *Pipeline) {
		if config != nil {
			p.config = config
		}
	}
}

// WithRand sets the random source used for page selection and sampling
func WithRand(r *sampling.Rand) Option {
	return func(p *Pipeline) {
		p.rand = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logging.OrNop(logger)
	}
}

// Pipeline acquires the photo references of a pin
type Pipeline struct {
	config   *Config
	searcher Searcher
	builder  *flickr.RequestBuilder
	store    store.Store
	rand     *sampling.Rand
	pages    *sampling.PageSelector
	sampler  *sampling.Sampler
	logger   *zap.Logger
}

// NewPipeline creates a pipeline searching with searcher and persisting into st
func NewPipeline(searcher Searcher, builder *flickr.RequestBuilder, st store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:   DefaultConfig(),
		searcher: searcher,
		builder:  builder,
		store:    st,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.rand == nil {
		p.rand = sampling.NewTimeSeededRand()
	}
	if p.config.PhotosPerPin <= 0 {
		p.config.PhotosPerPin = DefaultPhotosPerPin
	}
	p.pages = sampling.NewPageSelector(p.rand, p.config.MaxPage)
	p.sampler = sampling.NewSampler(p.rand)
	return p
}

// Acquire searches photos around pin and stores a random sample of them as
// pending photos. On any error nothing is stored. If the pin is deleted
// while the acquisition runs, Acquire returns no photos and no error.
func (p *Pipeline) Acquire(ctx context.Context, pin *store.Pin) ([]*store.Photo, error) {
	log := p.logger.With(zap.String("pin", pin.ID))

	bbox := geo.BoundingBoxFor(geo.Point{Latitude: pin.Latitude, Longitude: pin.Longitude}, p.config.Extent)
	log.Debug("Bounding box", zap.Stringer("bbox", bbox))

	req := p.builder.Search(bbox)

	res, err := p.searcher.Search(ctx, req)
	if err != nil {
		log.Warn("Page count search failed", zap.Error(err))
		return nil, fmt.Errorf("search photos for pin %s: %w", pin.ID, err)
	}

	pages := 0
	if res.HasPages {
		pages = res.Pages
	}
	log.Debug("Page count", zap.Int("pages", pages), zap.Bool("present", res.HasPages))

	page, err := p.pages.Select(pages)
	if err != nil {
		log.Warn("No result pages", zap.Error(err))
		return nil, fmt.Errorf("search photos for pin %s: %w", pin.ID, err)
	}
	log.Debug("Selected page", zap.Int("page", page))

	res, err = p.searcher.Search(ctx, req.WithPage(page))
	if err != nil {
		log.Warn("Page search failed", zap.Int("page", page), zap.Error(err))
		return nil, fmt.Errorf("search page %d for pin %s: %w", page, pin.ID, err)
	}

	urls, err := candidateURLs(res, page)
	if err != nil {
		log.Warn("No usable candidates", zap.Int("page", page), zap.Error(err))
		return nil, fmt.Errorf("search page %d for pin %s: %w", page, pin.ID, err)
	}

	sampled := sampling.Pick(p.sampler, urls, p.config.PhotosPerPin)
	log.Debug("Sampled candidates",
		zap.Int("candidates", len(res.Photos)),
		zap.Int("usable", len(urls)),
		zap.Int("sampled", len(sampled)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	photos, err := p.store.CreatePhotos(ctx, pin.ID, sampled)
	if errors.Is(err, errs.ErrNotFound) {
		log.Info("Pin deleted during acquisition, discarding results")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store photos for pin %s: %w", pin.ID, err)
	}

	log.Info("Stored pending photos", zap.Int("count", len(photos)), zap.Int("page", page))
	return photos, nil
}

// AcquireAsync runs Acquire in the background. The channel receives exactly
// one value and is then closed.
func (p *Pipeline) AcquireAsync(ctx context.Context, pin *store.Pin) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		_, err := p.Acquire(ctx, pin)
		done <- err
	}()
	return done
}

// Refresh deletes every photo of pin and acquires a new batch
func (p *Pipeline) Refresh(ctx context.Context, pin *store.Pin) ([]*store.Photo, error) {
	n, err := p.store.DeletePinPhotos(ctx, pin.ID)
	if err != nil {
		return nil, fmt.Errorf("delete photos of pin %s: %w", pin.ID, err)
	}
	p.logger.Debug("Deleted photos for refresh", zap.String("pin", pin.ID), zap.Int("count", n))

	return p.Acquire(ctx, pin)
}

// EnsurePhotos acquires photos for pin only if it has none yet
func (p *Pipeline) EnsurePhotos(ctx context.Context, pin *store.Pin) ([]*store.Photo, error) {
	existing, err := p.store.ListPhotos(ctx, store.PhotoFilter{PinID: pin.ID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}
	return p.Acquire(ctx, pin)
}

func candidateURLs(res *flickr.Results, page int) ([]string, error) {
	if !res.HasPhotos {
		return nil, errs.Schema("cannot find key 'photo' in search results")
	}
	if len(res.Photos) == 0 {
		return nil, errs.NoResults(fmt.Sprintf("page %d has no photos", page))
	}

	urls := lo.FilterMap(res.Photos, func(c flickr.Candidate, _ int) (string, bool) {
		return c.MediumURL()
	})
	if len(urls) == 0 {
		return nil, errs.NoResults(fmt.Sprintf("no photo on page %d has a url_m field", page))
	}
	return urls, nil
}
