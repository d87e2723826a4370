// Command lantern builds a site's generated artifacts: media derivatives,
// gallery sidecars and datasets, and the staged output tree.
package main
