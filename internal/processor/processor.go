package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"codeberg.org/snonux/pinphotos/internal"
	"codeberg.org/snonux/pinphotos/internal/acquisition"
	"codeberg.org/snonux/pinphotos/internal/archive"
	"codeberg.org/snonux/pinphotos/internal/batch"
	"codeberg.org/snonux/pinphotos/internal/cli"
	"codeberg.org/snonux/pinphotos/internal/errs"
	"codeberg.org/snonux/pinphotos/internal/flickr"
	"codeberg.org/snonux/pinphotos/internal/geo"
	"codeberg.org/snonux/pinphotos/internal/logging"
	"codeberg.org/snonux/pinphotos/internal/store"
)

// Processor runs the pinphotos commands against one store
type Processor struct {
	settings *cli.Settings
	out      io.Writer
	logger   *zap.Logger

	store    *store.SQLiteStore
	pipeline *acquisition.Pipeline
	fetcher  *acquisition.Fetcher
}

var _ cli.Handler = (*Processor)(nil)

// NewProcessor creates a processor. The store is opened on first use.
func NewProcessor(settings *cli.Settings, out io.Writer, logger *zap.Logger) *Processor {
	if out == nil {
		out = os.Stdout
	}
	return &Processor{
		settings: settings,
		out:      out,
		logger:   logging.OrNop(logger),
	}
}

func (p *Processor) open() error {
	if p.store != nil {
		return nil
	}

	st, err := store.OpenSQLite(p.settings.StorePath)
	if err != nil {
		return err
	}

	flickrConfig := flickr.DefaultConfig()
	if p.settings.FlickrEndpoint != "" {
		flickrConfig.Endpoint = p.settings.FlickrEndpoint
	}
	client := flickr.NewClient(flickrConfig, nil, p.logger)

	acqConfig := &acquisition.Config{
		Extent:       geo.Extent{HalfWidth: p.settings.HalfWidth, HalfHeight: p.settings.HalfHeight},
		PhotosPerPin: p.settings.PhotosPerPin,
		MaxPage:      p.settings.MaxPage,
	}
	if acqConfig.Extent.HalfWidth <= 0 || acqConfig.Extent.HalfHeight <= 0 {
		acqConfig.Extent = geo.DefaultExtent()
	}

	builder := flickr.NewRequestBuilder(p.settings.FlickrKey, p.settings.PerPage)
	pipeline := acquisition.NewPipeline(client, builder, st,
		acquisition.WithConfig(acqConfig),
		acquisition.WithLogger(p.logger.Named("acquisition")))

	fetchOptions := acquisition.DefaultFetchOptions()
	if p.settings.MaxBytes > 0 {
		fetchOptions.MaxSizeBytes = p.settings.MaxBytes
	}
	if p.settings.Concurrency > 0 {
		fetchOptions.Concurrency = p.settings.Concurrency
	}

	p.store = st
	p.pipeline = pipeline
	p.fetcher = acquisition.NewFetcher(client, st, fetchOptions, p.logger.Named("fetcher"))
	return nil
}

func (p *Processor) requireKey() error {
	if p.settings.FlickrKey == "" {
		return fmt.Errorf("Flickr API key is required (set FLICKR_API_KEY or flickr.api_key)")
	}
	return nil
}

// Close closes the store if it was opened
func (p *Processor) Close() error {
	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}

// AddPin saves a pin, or reports the existing pin at the same location
func (p *Processor) AddPin(ctx context.Context, latitude, longitude float64) error {
	if err := p.open(); err != nil {
		return err
	}

	if existing, err := p.store.FindPinAt(ctx, latitude, longitude); err == nil {
		fmt.Fprintf(p.out, "Pin already exists: %s\n", existing.ID)
		return nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	pin, err := p.store.CreatePin(ctx, latitude, longitude)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Created pin %s at %v, %v\n", pin.ID, pin.Latitude, pin.Longitude)
	return nil
}

// ListPins prints every pin with its photo counts
func (p *Processor) ListPins(ctx context.Context) error {
	if err := p.open(); err != nil {
		return err
	}

	pins, err := p.store.ListPins(ctx)
	if err != nil {
		return err
	}
	if len(pins) == 0 {
		fmt.Fprintln(p.out, "No pins")
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLATITUDE\tLONGITUDE\tPHOTOS\tPENDING")
	for _, pin := range pins {
		photos, err := p.store.ListPhotos(ctx, store.PhotoFilter{PinID: pin.ID})
		if err != nil {
			return err
		}
		pending := lo.CountBy(photos, func(ph *store.Photo) bool { return ph.Pending() })
		fmt.Fprintf(w, "%s\t%v\t%v\t%d\t%d\n", pin.ID, pin.Latitude, pin.Longitude, len(photos), pending)
	}
	return w.Flush()
}

// DeletePin removes a pin together with its photos
func (p *Processor) DeletePin(ctx context.Context, pinID string) error {
	if err := p.open(); err != nil {
		return err
	}
	if err := p.store.DeletePin(ctx, pinID); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Deleted pin %s\n", pinID)
	return nil
}

// Acquire creates the photo collection of a pin unless it already has one
func (p *Processor) Acquire(ctx context.Context, pinID string) error {
	pin, err := p.pin(ctx, pinID)
	if err != nil {
		return err
	}

	existing, err := p.store.ListPhotos(ctx, store.PhotoFilter{PinID: pin.ID})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Fprintf(p.out, "Pin %s already has %d photos (use refresh for a new collection)\n", pin.ID, len(existing))
		return p.maybeFetch(ctx, pin.ID)
	}

	if err := p.requireKey(); err != nil {
		return err
	}
	photos, err := p.pipeline.Acquire(ctx, pin)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Stored %d photos for pin %s\n", len(photos), pin.ID)
	return p.maybeFetch(ctx, pin.ID)
}

// Refresh replaces the photo collection of a pin
func (p *Processor) Refresh(ctx context.Context, pinID string) error {
	pin, err := p.pin(ctx, pinID)
	if err != nil {
		return err
	}
	if err := p.requireKey(); err != nil {
		return err
	}

	photos, err := p.pipeline.Refresh(ctx, pin)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Stored %d new photos for pin %s\n", len(photos), pin.ID)
	return p.maybeFetch(ctx, pin.ID)
}

// Fetch downloads the missing images of a pin
func (p *Processor) Fetch(ctx context.Context, pinID string) error {
	pin, err := p.pin(ctx, pinID)
	if err != nil {
		return err
	}
	return p.fetch(ctx, pin.ID)
}

func (p *Processor) maybeFetch(ctx context.Context, pinID string) error {
	if !p.settings.Fetch {
		return nil
	}
	return p.fetch(ctx, pinID)
}

func (p *Processor) fetch(ctx context.Context, pinID string) error {
	outcomes, err := p.fetcher.FetchPending(ctx, pinID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(p.out, "No missing images for pin %s\n", pinID)
		return nil
	}

	failed := lo.Filter(outcomes, func(o acquisition.Outcome, _ int) bool { return !o.Success })
	for _, o := range failed {
		fmt.Fprintf(p.out, "  Failed %s: %s\n", o.PhotoID, o.ErrorMessage())
	}
	fmt.Fprintf(p.out, "Downloaded %d of %d images for pin %s\n", len(outcomes)-len(failed), len(outcomes), pinID)

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d downloads failed", len(failed), len(outcomes))
	}
	return nil
}

// ListPhotos prints the photos of a pin
func (p *Processor) ListPhotos(ctx context.Context, pinID string) error {
	pin, err := p.pin(ctx, pinID)
	if err != nil {
		return err
	}

	photos, err := p.store.ListPhotos(ctx, store.PhotoFilter{PinID: pin.ID})
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		fmt.Fprintf(p.out, "Pin %s has no photos\n", pin.ID)
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIMAGE\tURL")
	for _, photo := range photos {
		image := "pending"
		if !photo.Pending() {
			image = fmt.Sprintf("%s, %d bytes", mimetype.Detect(photo.Image).String(), len(photo.Image))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", photo.ID, image, photo.URL)
	}
	return w.Flush()
}

// DeletePhotos removes single photos
func (p *Processor) DeletePhotos(ctx context.Context, photoIDs []string) error {
	if err := p.open(); err != nil {
		return err
	}

	n, err := p.store.DeletePhotos(ctx, lo.Uniq(photoIDs)...)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Deleted %d photos\n", n)
	if n < len(lo.Uniq(photoIDs)) {
		fmt.Fprintf(p.out, "%d photos were not found\n", len(lo.Uniq(photoIDs))-n)
	}
	return nil
}

// Import creates a pin for each batch file entry and acquires its photos
func (p *Processor) Import(ctx context.Context, file string) error {
	entries, err := batch.ReadBatchFile(file)
	if err != nil {
		return err
	}
	if err := p.open(); err != nil {
		return err
	}
	if err := p.requireKey(); err != nil {
		return err
	}

	// Track statistics
	skippedCount := 0
	processedCount := 0
	errorCount := 0

	for i, entry := range entries {
		fmt.Fprintf(p.out, "\nProcessing %d/%d: %v, %v\n", i+1, len(entries), entry.Latitude, entry.Longitude)

		pin, err := p.store.FindPinAt(ctx, entry.Latitude, entry.Longitude)
		if errors.Is(err, errs.ErrNotFound) {
			pin, err = p.store.CreatePin(ctx, entry.Latitude, entry.Longitude)
		}
		if err != nil {
			fmt.Fprintf(p.out, "  Error on line %d: %v\n", entry.Line, err)
			errorCount++
			continue
		}

		before, err := p.store.ListPhotos(ctx, store.PhotoFilter{PinID: pin.ID})
		if err != nil {
			fmt.Fprintf(p.out, "  Error on line %d: %v\n", entry.Line, err)
			errorCount++
			continue
		}
		if len(before) > 0 {
			fmt.Fprintf(p.out, "  ✓ Skipping pin %s - already has %d photos\n", pin.ID, len(before))
			skippedCount++
			continue
		}

		photos, err := p.pipeline.Acquire(ctx, pin)
		if err != nil {
			fmt.Fprintf(p.out, "  Error on line %d: %v\n", entry.Line, err)
			errorCount++
			continue
		}
		fmt.Fprintf(p.out, "  Stored %d photos for pin %s\n", len(photos), pin.ID)

		if err := p.maybeFetch(ctx, pin.ID); err != nil {
			fmt.Fprintf(p.out, "  Warning: %v\n", err)
		}
		processedCount++
	}

	// Print summary
	fmt.Fprintf(p.out, "\n=== Import Summary ===\n")
	fmt.Fprintf(p.out, "Total pins: %d\n", len(entries))
	fmt.Fprintf(p.out, "Processed: %d\n", processedCount)
	fmt.Fprintf(p.out, "Skipped (already has photos): %d\n", skippedCount)
	if errorCount > 0 {
		fmt.Fprintf(p.out, "Errors: %d\n", errorCount)
	}
	fmt.Fprintf(p.out, "======================\n")

	return nil
}

// Export writes every downloaded image of a pin to dir/<pin-id>/<photo-id>.<ext>
func (p *Processor) Export(ctx context.Context, pinID, dir string) error {
	pin, err := p.pin(ctx, pinID)
	if err != nil {
		return err
	}

	photos, err := p.store.ListPhotos(ctx, store.PhotoFilter{PinID: pin.ID})
	if err != nil {
		return err
	}

	pinDir := filepath.Join(dir, internal.SanitizeFilename(pin.ID))
	if err := os.MkdirAll(pinDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	written := 0
	for _, photo := range photos {
		if photo.Pending() {
			continue
		}
		name := internal.SanitizeFilename(photo.ID) + mimetype.Detect(photo.Image).Extension()
		if err := os.WriteFile(filepath.Join(pinDir, name), photo.Image, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written++
	}

	fmt.Fprintf(p.out, "Exported %d images to %s\n", written, pinDir)
	if skipped := len(photos) - written; skipped > 0 {
		fmt.Fprintf(p.out, "%d images are not downloaded yet (run fetch first)\n", skipped)
	}
	return nil
}

// Archive moves the store into the archive directory
func (p *Processor) Archive(ctx context.Context) error {
	path := p.settings.StorePath

	if _, err := os.Stat(path); err == nil && !p.settings.Force {
		if err := p.open(); err != nil {
			return err
		}
		pending, err := p.store.ListPhotos(ctx, store.PhotoFilter{PendingOnly: true})
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return fmt.Errorf("%d images are still missing, fetch them first or use --force", len(pending))
		}
	}

	if err := p.Close(); err != nil {
		return err
	}

	archivePath, err := archive.ArchiveStore(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Store archived to: %s\n", archivePath)
	return nil
}

func (p *Processor) pin(ctx context.Context, pinID string) (*store.Pin, error) {
	if err := p.open(); err != nil {
		return nil, err
	}
	return p.store.GetPin(ctx, pinID)
}
