package store

import "context"

// Store is the persistent record store used by the acquisition pipeline.
// Batch creation is all-or-nothing and image attachment never exposes a
// partially written payload. Operations on a pin or photo that no longer
// exists return an errs.NotFound error.
type Store interface {
	CreatePin(ctx context.Context, latitude, longitude float64) (*Pin, error)
	GetPin(ctx context.Context, id string) (*Pin, error)
	FindPinAt(ctx context.Context, latitude, longitude float64) (*Pin, error)
	ListPins(ctx context.Context) ([]*Pin, error)
	DeletePin(ctx context.Context, id string) error

	// CreatePhotos inserts one pending photo per URL in a single transaction
	CreatePhotos(ctx context.Context, pinID string, urls []string) ([]*Photo, error)
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	ListPhotos(ctx context.Context, filter PhotoFilter) ([]*Photo, error)
	// AttachImage sets the image of a pending photo. It reports false when
	// the photo already had an image.
	AttachImage(ctx context.Context, photoID string, data []byte) (bool, error)
	DeletePhotos(ctx context.Context, ids ...string) (int, error)
	DeletePinPhotos(ctx context.Context, pinID string) (int, error)

	Close() error
}
