// Package store persists pins and their photos. A photo always belongs to
// exactly one pin and always has a remote URL; its image bytes stay NULL
// until the download has completed, and are then written in one statement.
package store
