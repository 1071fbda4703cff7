// Package archive moves a photo store out of the way so the next run
// starts with an empty one.
package archive
