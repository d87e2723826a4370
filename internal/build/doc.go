// Package build orchestrates a full artifact-generation run: workspace
// locking, change detection, gallery sidecar lifecycle, media planning and
// processing, staging, and build-state persistence. The CLI consumes the
// report it returns.
package build
