// Package optimizer wraps the ImageMagick CLI to produce the photo variants
// stored with each published asset: a web-sized rendition, a thumbnail, and a
// tiny blur-up placeholder. Variant failures never abort the caller; each is
// reported through a callback and the remaining variants are still attempted.
package optimizer
