// Package connectors provides the sources the knowledge base is read from.
// Each connector lists and watches raw documents; normalisers turn them into
// text for the embedding pipeline.
package connectors
