package store

import "time"

// Pin is a saved map location
type Pin struct {
	ID        string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

// Photo is one image of a pin. Image is nil while the download is pending.
type Photo struct {
	ID        string
	PinID     string
	URL       string
	Image     []byte
	CreatedAt time.Time
}

// Pending reports whether the image bytes have not been downloaded yet
func (p *Photo) Pending() bool {
	return p.Image == nil
}

// PhotoFilter narrows ListPhotos. Zero values match everything.
type PhotoFilter struct {
	PinID       string
	PendingOnly bool
}
