// Package gallery manages JSON sidecar metadata for image collections.
//
// A collection is a directory of images under the gallery source root with a
// collection sidecar and one sidecar per image. The manager discovers
// collections, fills in missing metadata, optionally annotates images and
// cleans up generated text, and writes sidecars back. Sidecars that already
// existed when the run started are never rewritten unless a refresh is
// requested, so manual edits survive ordinary builds. Unknown sidecar keys
// round-trip untouched.
package gallery
