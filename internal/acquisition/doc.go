// Package acquisition turns a pin into a batch of photo records and later
// fills in the image bytes of those records.
//
// Pipeline runs the search flow for one pin: bounding box, page count,
// random page, candidate list, sampling, then one transaction creating the
// pending photos. Fetcher downloads the image of a pending photo and
// attaches it to the record. Fetches are independent of each other.
package acquisition
