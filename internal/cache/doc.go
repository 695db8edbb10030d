// Package cache persists sync batches into the store and answers the room
// list, member, timeline and receipt queries of the client.
//
// ApplySyncDelta is the only writer of room state. One batch runs in a
// single write transaction:
//
//  1. state and state-bearing timeline events of each joined room
//  2. the room's timeline messages
//  3. the recomputed RoomInfo
//  4. merged read receipts
//  5. removal of a stale invite for the room
//
// followed by invites, left rooms and the next batch token. Pending receipts
// are reconciled per joined room after the batch commits.
//
// Query methods log engine errors and return empty results; mutations
// return their errors.
package cache
