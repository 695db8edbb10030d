// Package session stores end-to-end encryption sessions.
//
// Three kinds of session are kept, each as a pickle produced by the caller's
// Pickler; plaintext key material never reaches the store:
//
//   - Olm sessions, keyed by the remote device's curve25519 key and the
//     session id. They are read from disk on demand.
//   - Inbound Megolm sessions, keyed by the fingerprint of their
//     MegolmSessionIndex. Written once, never updated.
//   - Outbound Megolm sessions, one per room, stored with their
//     OutboundGroupSessionData. The message index is rewritten on every
//     advance so a restart never reuses it.
//
// Megolm sessions are mirrored in memory. RestoreAll loads the mirror at
// startup; afterwards every mutation writes the disk record and then the
// mirror while holding the store's write lock, so once a call returns both
// agree. The mirror's own lock only covers copying entries in and out.
package session
