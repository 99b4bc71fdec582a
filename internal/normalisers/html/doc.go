// Package html provides a Normaliser implementation for HTML documents.
// It tokenises the markup with golang.org/x/net/html, drops scripts, styles
// and the document head, and keeps block structure as line breaks.
package html
