// Package server exposes the transfer core over HTTP using gin.
//
// # Routes
//
//	GET  /health
//	POST /api/sessions/:session/auth
//	GET  /api/sessions/:session/playlists
//	GET  /api/sessions/:session/reports?limit=N
//	POST /api/transfers
//	GET  /api/transfers/:handle
//	POST /api/transfers/:handle/cancel
//
// Requests are bound into typed structs and validated with binding tags and
// [services.ValidateSessionID] before anything reaches the core. Transfers are
// never run inline: POST /api/transfers hands the request to a [Jobs]
// implementation (the queue dispatcher) and answers 202 with a handle that is
// polled through the status route.
//
// # Errors
//
// Failures are answered with an [ErrorResponse]. The status code follows the
// wrapped sentinel from the shared package: authentication errors map to 401,
// argument errors to 400, missing jobs to 404, unavailable backends to 503 and
// timeouts to 504.
package server
