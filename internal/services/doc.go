// Package services implements the catalog clients consumed by the transfer pipeline.
//
// # Source
//
// [SpotifySource] implements [SourceCatalog] with github.com/zmb3/spotify/v2.
// The http.Client it is given carries the session's OAuth2 token and refreshes it
// transparently. The liked songs pseudo-playlist is always listed first, followed
// by playlists the user owns.
//
// # Destinations
//
// [YTMusicDestination] talks to a FastAPI proxy wrapping ytmusicapi. The
// session's headers file is sent in the X-Auth-File header on every request.
//
// [YouTubeDestination] uses the YouTube Data API instead, for deployments
// without the proxy.
//
// # Sessions
//
// [ClientFactory] builds a fresh client pair per session from configuration, so
// no client state is shared between concurrent runs.
//
// # Error Handling
//
// Transport failures wrap [shared.ErrAPIRequest], or [shared.ErrTimeout] when a
// deadline expired. Missing session credentials wrap [shared.ErrMissingCredentials].
package services
