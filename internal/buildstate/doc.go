// Package buildstate persists fingerprints of the watched input trees between
// runs so a build can tell which input groups changed, and remembers which
// template files the previous run staged so vanished sources can be cleaned
// out of the output tree.
package buildstate
