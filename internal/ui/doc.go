// Package ui implements the terminal interfaces using bubbletea's Elm architecture.
//
// [Model] drives a local transfer:
//  1. [PlaylistListView] : Browse source playlists and toggle a selection
//  2. [ConfirmView] : Review the selection, track count and estimated time
//  3. [TransferView] : Follow progress updates from the engine
//  4. [ResultView] : Summary counters and per-playlist outcomes
//
// Progress updates flow through the channel the engine was built with. The run
// itself executes in a goroutine whose result arrives as a single completion
// message. Pressing c writes the cancel flag to the progress store, the same
// path a remote cancel takes.
//
// [Watcher] follows a queued transfer by polling the progress store and exits
// once the session reaches a terminal status.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
