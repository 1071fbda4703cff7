// Package sampling picks which page of search results to fetch and which
// candidates on that page to keep. All randomness flows through a Rand so
// tests can fix the seed.
package sampling
