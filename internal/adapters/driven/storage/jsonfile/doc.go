// Package jsonfile provides JSON-file implementations of the index and
// project-mapping stores.
//
// Each store keeps one document per file and rewrites it whole. Writes go
// to a temporary file in the same directory which is then renamed over the
// target, so readers see either the old or the new document.
package jsonfile
