package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codeberg.org/snonux/pinphotos/internal/errs"
	"codeberg.org/snonux/pinphotos/internal/flickr"
	"codeberg.org/snonux/pinphotos/internal/logging"
	"codeberg.org/snonux/pinphotos/internal/store"
)

// Downloader opens the remote image behind a URL
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// FetchOptions configures image downloads
type FetchOptions struct {
	MaxSizeBytes int64 // Maximum image size (0 = no limit)
	Concurrency  int   // Parallel downloads in FetchAll
	RequireImage bool  // Reject payloads that are not detected as images
}

// DefaultFetchOptions returns the default download settings
func DefaultFetchOptions() *FetchOptions {
	return &FetchOptions{
		MaxSizeBytes: 10 * 1024 * 1024, // 10MB
		Concurrency:  8,
		RequireImage: true,
	}
}

// Outcome is the result of fetching the image of one photo
type Outcome struct {
	PhotoID string
	Success bool
	// Skipped is set when nothing had to be stored: the photo already had
	// an image or was deleted while downloading.
	Skipped bool
	Err     error
}

// ErrorMessage returns the failure message, or "" on success
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Fetcher downloads the images of pending photos
type Fetcher struct {
	downloader Downloader
	store      store.Store
	options    *FetchOptions
	logger     *zap.Logger
}

// NewFetcher creates a new image fetcher
func NewFetcher(downloader Downloader, st store.Store, options *FetchOptions, logger *zap.Logger) *Fetcher {
	if options == nil {
		options = DefaultFetchOptions()
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 1
	}
	return &Fetcher{
		downloader: downloader,
		store:      st,
		options:    options,
		logger:     logging.OrNop(logger),
	}
}

// Fetch downloads the image of photo and attaches it to the stored record.
// On success photo.Image is set as well. A failed fetch leaves the record
// pending so it can be retried.
func (f *Fetcher) Fetch(ctx context.Context, photo *store.Photo) Outcome {
	log := f.logger.With(zap.String("photo", photo.ID))

	if !photo.Pending() {
		log.Debug("Photo already has an image")
		return Outcome{PhotoID: photo.ID, Success: true, Skipped: true}
	}

	// photo may be a stale copy
	current, err := f.store.GetPhoto(ctx, photo.ID)
	if errors.Is(err, errs.ErrNotFound) {
		log.Debug("Photo no longer exists")
		return Outcome{PhotoID: photo.ID, Success: true, Skipped: true}
	}
	if err != nil {
		err = errs.Download("unable to load photo record").WithCause(err)
		log.Warn("Photo lookup failed", zap.Error(err))
		return Outcome{PhotoID: photo.ID, Err: err}
	}
	if !current.Pending() {
		log.Debug("Photo got an image from another fetch")
		return Outcome{PhotoID: photo.ID, Success: true, Skipped: true}
	}

	data, err := f.download(ctx, photo.URL)
	if err != nil {
		log.Warn("Image download failed", zap.String("url", photo.URL), zap.Error(err))
		return Outcome{PhotoID: photo.ID, Err: err}
	}

	attached, err := f.store.AttachImage(ctx, photo.ID, data)
	if errors.Is(err, errs.ErrNotFound) {
		log.Debug("Photo deleted during download, discarding image")
		return Outcome{PhotoID: photo.ID, Success: true, Skipped: true}
	}
	if err != nil {
		err = errs.Download("unable to store downloaded image").WithCause(err)
		log.Warn("Image store failed", zap.Error(err))
		return Outcome{PhotoID: photo.ID, Err: err}
	}
	if !attached {
		log.Debug("Photo got an image from another fetch")
		return Outcome{PhotoID: photo.ID, Success: true, Skipped: true}
	}

	photo.Image = data
	return Outcome{PhotoID: photo.ID, Success: true}
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	reader, err := f.downloader.Download(ctx, url)
	if err != nil {
		return nil, errs.Download(fmt.Sprintf("unable to download image from URL: %s", url)).WithCause(err)
	}
	defer reader.Close()

	data, err := flickr.ReadLimited(reader, f.options.MaxSizeBytes)
	if err != nil {
		return nil, errs.Download(fmt.Sprintf("unable to read image from URL: %s", url)).WithCause(err)
	}
	if len(data) == 0 {
		return nil, errs.Download(fmt.Sprintf("empty image from URL: %s", url))
	}

	if f.options.RequireImage {
		mtype := mimetype.Detect(data)
		if !strings.HasPrefix(mtype.String(), "image/") {
			return nil, errs.Download(fmt.Sprintf("URL %s returned %s, not an image", url, mtype.String()))
		}
	}
	return data, nil
}

// FetchAsync runs Fetch in the background. The channel receives exactly
// one outcome and is then closed.
func (f *Fetcher) FetchAsync(ctx context.Context, photo *store.Photo) <-chan Outcome {
	done := make(chan Outcome, 1)
	go func() {
		defer close(done)
		done <- f.Fetch(ctx, photo)
	}()
	return done
}

// FetchAll fetches photos concurrently. One failure never stops the
// others. Outcomes are returned in the order of photos.
func (f *Fetcher) FetchAll(ctx context.Context, photos []*store.Photo) []Outcome {
	outcomes := make([]Outcome, len(photos))

	var g errgroup.Group
	g.SetLimit(f.options.Concurrency)
	for i, photo := range photos {
		g.Go(func() error {
			outcomes[i] = f.Fetch(ctx, photo)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// FetchPending fetches every photo of the pin that has no image yet
func (f *Fetcher) FetchPending(ctx context.Context, pinID string) ([]Outcome, error) {
	photos, err := f.store.ListPhotos(ctx, store.PhotoFilter{PinID: pinID, PendingOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list pending photos of pin %s: %w", pinID, err)
	}
	return f.FetchAll(ctx, photos), nil
}
