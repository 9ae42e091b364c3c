// Package ratelimit paces actions against the site.
//
// Bucket wraps golang.org/x/time/rate: tokens accrue continuously at the
// configured rate up to the burst size. Mutating browser operations get a
// small burst; image downloads use a burst of one so they are spaced evenly.
//
// Wait blocks until a token is free or the context ends.
package ratelimit
