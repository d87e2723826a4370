// Package media plans and executes derivative generation for referenced
// media files.
//
// The planner walks every document's media references, resolves them through
// the configured mount table, and folds duplicates into one task per
// (media path, profile) pair. The processor executes a plan with mtime/size
// cache reuse, regenerates stale derivatives through the imaging pipeline,
// copies passthrough assets verbatim, and finishes with a mark-and-sweep
// prune of the derivative root so no stale artifact survives a completed run.
package media
