// Package renderer wraps the pandoc CLI to turn generated lesson and workbook
// markdown into printable PDFs. Rendering failures are surfaced to the caller,
// which treats each document as an optional artifact.
package renderer
