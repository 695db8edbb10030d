// Package store owns the on-disk environment of the Matrix client cache.
//
// One environment exists per local user identity. It lives in a directory
// named after a domain-separated SHA-256 of the user id and contains:
//   - cache.db: SQLite database holding every named sub-store as a table
//   - media.db: bbolt file holding downloaded media (url -> bytes)
//
// # Sub-stores
//
// Fixed tables: sync_state, rooms, invites, read_receipts, pending_receipts,
// sent_notifications, encrypted_rooms, devices, device_keys,
// inbound_megolm_sessions, outbound_megolm_sessions, olm_sessions.
// Per-room sub-stores (states, members, messages, invite states and invite
// members) are tables keyed by room_id first; dropping a room's sub-store
// deletes its rows.
//
// # Transactions
//
//   - One writer: write transactions run on a single-connection pool with
//     BEGIN IMMEDIATE
//   - Many readers: read transactions run on a query_only pool and see a WAL
//     snapshot as of their first read
//   - A transaction that is not committed is rolled back
//
// # Format policy
//
// The layout is not forward or backward compatible. When the engine reports
// a file it cannot read, or the stored cache format version differs from
// FormatVersion, Open deletes every file in the directory and starts from an
// empty store. There is no incremental migration between format versions.
package store
