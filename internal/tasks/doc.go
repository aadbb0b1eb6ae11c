// Package tasks orchestrates playlist transfers between music services with real-time progress reporting.
//
// # Core Operations
//
// [TransferEngine] is built per session with an explicit source/destination pair:
//
//  1. [TransferEngine.Authenticate] : Spotify first, then the destination
//     - Fails fast with [shared.ErrAuthFailed] naming the service
//
//  2. [TransferEngine.Run] / [TransferEngine.RunSelected] : Full transfer
//     - Fetches each selected playlist's tracks from the source
//     - Finds, reuses, or creates the destination playlist (cached by name for the run)
//     - Resolves each track with the primary matcher, then the AI fallback
//     - Likes matched tracks for the liked songs pseudo-playlist (primary pass only)
//     - Returns a [models.TransferReport] and hands it to the configured sink
//
// # Progress Reporting
//
// Progress and status are written to a [progress.Store] after every track, and the
// store's cancel flag is read before every track. The engine also publishes
// [ProgressUpdate] values on an optional channel. Updates use select with default to prevent blocking.
//
// # Cancellation
//
// A cancel request or a done context stops the run at the next track boundary.
// The partial report is returned with an error wrapping [shared.ErrCancelled] and is not persisted.
package tasks
