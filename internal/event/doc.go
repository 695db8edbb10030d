// Package event defines the Matrix event shapes consumed by the cache.
//
// Events arrive from the sync collaborator as [SyncDelta] batches. State
// event contents are decoded into a closed set of [StateContent] variants so
// that room projection can match them exhaustively; event types the cache
// does not project are carried as [Unknown] and stored verbatim.
//
// Batches can be decoded from JSON (the wire format of /sync) or from YAML,
// which is used for fixtures and by the mxcache apply command.
package event
