/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package primitives

import (
	"crypto/sha256"

	"github.com/zeebo/blake3"
)

// B3Size is the digest size, in bytes, of every BLAKE3 hash used by
// the chain and archive format.
const B3Size = 32

// B3Tag is the algorithm tag used when a BLAKE3 digest is encoded as a
// tagged string ("b3:<base64>").
const B3Tag = "b3"

// BLAKE3Sum hashes data and returns the 32-byte digest. This is the
// primary hash for the continuity chain and for file-level integrity
// checks.
func BLAKE3Sum(data []byte) [B3Size]byte {
	h := blake3.New()
	h.Write(data)
	var out [B3Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// BLAKE3Writer is an incremental BLAKE3 hasher for streaming large
// segments without buffering them fully, used by chain.Validate when
// it recomputes each segment's hash from the archive.
type BLAKE3Writer struct {
	h *blake3.Hasher
}

func NewBLAKE3Writer() *BLAKE3Writer {
	return &BLAKE3Writer{h: blake3.New()}
}

func (w *BLAKE3Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

func (w *BLAKE3Writer) Sum() [B3Size]byte {
	var out [B3Size]byte
	copy(out[:], w.h.Sum(nil))
	return out
}

// SHA256Sum is the auxiliary hash permitted by spec §4.1 for
// integrations that require it; it is never used for the continuity
// chain itself.
func SHA256Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}
