// Package batch reads pin locations from batch files, one
// "latitude,longitude" pair per line.
package batch
