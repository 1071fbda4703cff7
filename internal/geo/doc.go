// Package geo computes the rectangular search region sent to the photo
// search API for a point on the map.
package geo
