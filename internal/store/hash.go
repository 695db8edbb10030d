package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for derived identifiers.
const (
	DomainUserDir       = "mxcache/user-dir/v1"
	DomainMegolmSession = "mxcache/megolm-session/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || part0 || 0x00 || part1 ...)
// and returns it hex encoded. The separators keep part boundaries unambiguous.
func HashWithDomain(domain string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PathForUser returns the directory name used for a user's environment.
func PathForUser(userID string) string {
	return HashWithDomain(DomainUserDir, userID)
}
