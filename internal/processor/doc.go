// Package processor contains the application logic behind the pinphotos
// commands. It opens the photo store, wires the Flickr client into the
// acquisition pipeline and the image fetcher, and handles batch import,
// export and archiving. This package serves as the main coordinator
// between all other components.
package processor
