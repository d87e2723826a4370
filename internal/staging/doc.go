// Package staging assembles the deployable output tree: it copies template
// assets into the output root, removes previously staged template files whose
// sources vanished, and mirrors the derivative tree into the output root when
// it is generated elsewhere.
package staging
