// Package tasks implements the vibe-sorting pipeline over the external music
// APIs.
//
// The core abstraction is [VibeEngine], which runs the four pipeline stages in
// sequence for a single request: aggregate tracks from the requested sources,
// join artist genres and audio features onto them, classify against a named
// vibe, and mutate the destination playlist.
//
// The pipeline is deliberately best-effort at the item level: an unreachable
// source or a failed feature batch is recorded and skipped rather than
// aborting the request. Only failures that prevent any meaningful result
// (missing auth, unknown vibe, failed mutation) propagate to the caller.
// Nothing is ever retried.
package tasks
