// Package repositories implements SQLite persistence for browser sessions.
//
// A session row maps an opaque cookie id to the Spotify OAuth token it was
// issued for. Tokens are stored whole so a refreshed token can replace the
// previous one in place.
package repositories
