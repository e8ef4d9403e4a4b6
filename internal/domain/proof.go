package domain

import (
	"bytes"
	"crypto/sha256"
	"strconv"
)

// ─── Session Proofs ─────────────────────────────────────────────────────────
// A session proof is not a signature: the oracle and the distributor both
// recompute a SHA-256 digest over the session fields plus the distributor's
// current nonce and the current block height, and the proof is accepted iff
// it byte-equals that digest. Binding the nonce and the height into the
// preimage is what makes a proof single-use: replaying it against another
// session or at another height changes the digest.

// ProofSize is the digest length in bytes.
const ProofSize = sha256.Size

// SessionDigest computes the canonical proof digest for a session submission.
// Every integer field is encoded as its decimal string and the fields are
// concatenated with no separator, matching the oracle's encoding exactly:
//
//	sha256(nonce ‖ user ‖ station ‖ kwh ‖ timestamp ‖ height)
func SessionDigest(nonce uint64, user, station Principal, kwh, timestamp, height uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatUint(nonce, 10))
	buf.WriteString(string(user))
	buf.WriteString(string(station))
	buf.WriteString(strconv.FormatUint(kwh, 10))
	buf.WriteString(strconv.FormatUint(timestamp, 10))
	buf.WriteString(strconv.FormatUint(height, 10))
	sum := sha256.Sum256(buf.Bytes())
	return sum[:]
}

// VerifySessionProof reports whether proof is exactly the digest for the
// given session fields.
func VerifySessionProof(proof []byte, nonce uint64, user, station Principal, kwh, timestamp, height uint64) bool {
	if len(proof) != ProofSize {
		return false
	}
	return bytes.Equal(proof, SessionDigest(nonce, user, station, kwh, timestamp, height))
}
