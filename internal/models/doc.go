// Package models defines the domain types shared by the songmigrate packages.
//
// The package contains three categories of types:
//
// 1. Catalog snapshots, immutable once fetched from a music service
//   - [Track] : Source track with its ordered artist list
//   - [Playlist] : Playlist metadata, including the [LikedSongsID] pseudo-playlist
//   - [MatchCandidate] : A destination search hit considered by the matcher
//
// 2. Run configuration and lifecycle
//   - [TransferOptions] : Playlist creation/overwrite/privacy switches
//   - [Status] : Run state as observed by status pollers
//
// 3. Results
//   - [TransferReport] : The immutable record produced at the end of a run
//   - [PlaylistOutcome] : Per-playlist breakdown inside a report
package models
