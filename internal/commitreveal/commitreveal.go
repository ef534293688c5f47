// Package commitreveal checks that a revealed record is the one a party
// previously committed to.
//
// One side publishes the SHA-256 digest of a record's canonical bytes (the
// ledger exposes it as the private data hash of a key). The other side later
// reveals the full record; it is accepted only if its digest equals the
// commitment.
package commitreveal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrNoCommitment indicates nothing was committed under the key.
	ErrNoCommitment = errors.New("no commitment published")

	// ErrMismatch indicates the revealed bytes differ from the commitment.
	ErrMismatch = errors.New("revealed record does not match commitment")
)

// Commitment is a published digest.
type Commitment struct {
	digest []byte
}

// Commit returns the commitment for canonical record bytes.
func Commit(payload []byte) Commitment {
	sum := sha256.Sum256(payload)
	return Commitment{digest: sum[:]}
}

// FromDigest wraps a digest read back from storage. An empty digest means
// nothing was committed.
func FromDigest(digest []byte) Commitment {
	return Commitment{digest: bytes.Clone(digest)}
}

// Published reports whether the commitment holds a digest.
func (c Commitment) Published() bool {
	return len(c.digest) > 0
}

// Digest returns a copy of the raw digest.
func (c Commitment) Digest() []byte {
	return bytes.Clone(c.digest)
}

func (c Commitment) String() string {
	return hex.EncodeToString(c.digest)
}

// Equal reports whether two commitments hold the same digest.
func (c Commitment) Equal(other Commitment) bool {
	return c.Published() && bytes.Equal(c.digest, other.digest)
}

// Verify accepts payload only if it hashes to the commitment.
func (c Commitment) Verify(payload []byte) error {
	if !c.Published() {
		return ErrNoCommitment
	}
	if !c.Equal(Commit(payload)) {
		return ErrMismatch
	}
	return nil
}
