// Package textutil provides text helpers for deriving display metadata from
// filenames: stem-to-title conversion, tag token extraction, and ordered tag
// de-duplication. Titles use English casing rules from golang.org/x/text.
package textutil
