// Package flickr talks to the Flickr REST API: it builds bounding-box photo
// search requests, validates the JSON envelope of the response, and
// downloads image bytes from the URLs the search returns.
package flickr
