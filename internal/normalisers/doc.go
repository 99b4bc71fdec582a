// Package normalisers converts raw knowledge base files into plain text
// documents. Each normaliser handles a set of MIME types; the Registry picks
// the highest priority match.
package normalisers
