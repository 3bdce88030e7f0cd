// Package textutil provides text processing utilities for filenames, slugs,
// and display titles.
//
// The primary use cases are:
//   - Deriving human-readable titles from uploaded photo filenames
//   - Building lowercase slugs for asset directory names
//   - Sanitizing filenames and path segments for safe filesystem use
package textutil
