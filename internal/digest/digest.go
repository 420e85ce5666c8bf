// Package digest provides deterministic content hashing for ledger blocks and
// stored records. Structured payloads are canonicalized with RFC 8785 (JCS)
// before hashing so that key order never influences the digest.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Size is the digest length in bytes (SHA-256).
const Size = sha256.Size

// Digest is a fixed-length content hash, comparable with ==. The zero value is
// the genesis sentinel.
type Digest [Size]byte

// Zero is the sentinel digest carried as the genesis block's previous hash.
var Zero Digest

// Canonical hashes a structured payload. The payload is JSON-marshaled, run
// through JCS canonicalization, and hashed, so two structurally identical
// payloads always produce the same digest regardless of map iteration order.
func Canonical(payload any) (Digest, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Zero, fmt.Errorf("failed to marshal payload: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return Zero, fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	return Bytes(canonical), nil
}

// Bytes hashes a raw byte buffer. Used for content-addressing blobs.
func Bytes(buf []byte) Digest {
	return sha256.Sum256(buf)
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(raw) != Size {
		return Zero, fmt.Errorf("invalid digest length %d, expected %d", len(raw), Size)
	}

	var d Digest
	copy(d[:], raw)
	return d, nil
}

// String returns the lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the genesis sentinel.
func (d Digest) IsZero() bool {
	return d == Zero
}

// MarshalJSON encodes the digest as a hex string.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes the hex string form.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed

	return nil
}
