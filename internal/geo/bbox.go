package geo

import (
	"fmt"
	"math"
	"strconv"
)

// Valid coordinate ranges
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Point is a latitude/longitude pair in degrees
type Point struct {
	Latitude  float64
	Longitude float64
}

// Validate checks that the point lies inside the world extent
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < MinLatitude || p.Latitude > MaxLatitude {
		return fmt.Errorf("latitude %v out of range [%v, %v]", p.Latitude, MinLatitude, MaxLatitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < MinLongitude || p.Longitude > MaxLongitude {
		return fmt.Errorf("longitude %v out of range [%v, %v]", p.Longitude, MinLongitude, MaxLongitude)
	}
	return nil
}

// BoundingBox is the (minLon, minLat, maxLon, maxLat) search rectangle
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// String renders the box in the "minLon,minLat,maxLon,maxLat" form used by the bbox parameter
func (b BoundingBox) String() string {
	return formatDegrees(b.MinLon) + "," + formatDegrees(b.MinLat) + "," +
		formatDegrees(b.MaxLon) + "," + formatDegrees(b.MaxLat)
}

// Contains reports whether p lies inside the box, edges included
func (b BoundingBox) Contains(p Point) bool {
	return p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon &&
		p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat
}

// Extent is the half-width and half-height of a search box in degrees
type Extent struct {
	HalfWidth  float64
	HalfHeight float64
}

// DefaultExtent returns the one degree box used for pin searches
func DefaultExtent() Extent {
	return Extent{HalfWidth: 1.0, HalfHeight: 1.0}
}

// BoundingBoxFor returns the box of the given extent centered on p, clamped to the world extent
func BoundingBoxFor(p Point, e Extent) BoundingBox {
	return BoundingBox{
		MinLon: math.Max(p.Longitude-e.HalfWidth, MinLongitude),
		MinLat: math.Max(p.Latitude-e.HalfHeight, MinLatitude),
		MaxLon: math.Min(p.Longitude+e.HalfWidth, MaxLongitude),
		MaxLat: math.Min(p.Latitude+e.HalfHeight, MaxLatitude),
	}
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
