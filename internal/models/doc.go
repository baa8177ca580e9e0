// Package models defines the record types the vibesort pipeline passes between
// its stages.
//
// The types fall into two groups:
//
// 1. Provider records, constructed once per request from raw Spotify API
// payloads and immutable afterwards except for the join step:
//   - [Track] : a track with both of its provider identifiers (id and URI)
//   - [Artist] : an artist with its genre set
//   - [Playlist] : playlist metadata including the external link
//
// 2. Pipeline outputs:
//   - [FeatureVector] : the six-dimensional audio descriptor; absence is a
//     valid state and is represented by a nil pointer
//   - [AnalysisReport] : the aggregate payload served by the analyze endpoint
//
// A track's id and URI are distinct identifiers for the same entity: the id is
// used for artist and audio feature lookups, the URI for playlist membership
// and mutation calls.
package models
