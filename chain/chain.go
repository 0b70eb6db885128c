/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package chain

import (
	"io"

	"github.com/trustedge-labs/trustedge/primitives"
)

// genesisConstant is the fixed string hashed to produce the chain
// root, spec §3/§6.
const genesisConstant = "trustedge:genesis"

// Genesis returns h_0, the constant chain root.
func Genesis() [32]byte {
	return primitives.BLAKE3Sum([]byte(genesisConstant))
}

// SegmentHash computes SEG_HASH_i = BLAKE3(ciphertext).
func SegmentHash(ciphertext []byte) [32]byte {
	return primitives.BLAKE3Sum(ciphertext)
}

// Next computes h_{i+1} = BLAKE3(h_i || SEG_HASH_i).
func Next(prev [32]byte, segHash [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, prev[:]...)
	buf = append(buf, segHash[:]...)
	return primitives.BLAKE3Sum(buf)
}

// Source streams a contiguous, already-gap-checked sequence of
// segment ciphertexts in index order. Implementations (the archive
// reader) are responsible for surfacing Gap/EndOfChainTruncated at
// the file-layout level before Validate is ever called; Validate
// itself only ever sees a structurally complete sequence and
// determines whether its *content* is continuous.
type Source interface {
	Count() int
	// Open returns a reader over segment i's ciphertext. The caller
	// reads it to completion and closes it before requesting the
	// next index; segments are never held in memory all at once.
	Open(i int) (io.ReadCloser, error)
}

// Validate walks src from Genesis(), recomputing the chain, and
// compares the result to declaredTip. On success it returns nil. On
// failure it returns a *BrokenError identifying the kind — Gap and
// EndOfChainTruncated are surfaced by the caller (archive layer)
// rather than here; Validate itself only distinguishes a clean
// recomputation (nil), a swap of two segments at any two positions
// (OutOfOrder), or any other divergence (TipMismatch).
func Validate(src Source, declaredTip [32]byte) error {
	n := src.Count()
	if n == 0 {
		if Genesis() != declaredTip {
			return tipMismatchErr()
		}
		return nil
	}

	segHashes := make([][32]byte, n)
	h := Genesis()
	for i := 0; i < n; i++ {
		rc, err := src.Open(i)
		if err != nil {
			return err
		}
		hw := primitives.NewBLAKE3Writer()
		_, copyErr := io.Copy(hw, rc)
		closeErr := rc.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
		segHashes[i] = hw.Sum()
		h = Next(h, segHashes[i])
	}

	if h == declaredTip {
		return nil
	}

	// Not a clean chain. Check whether the divergence is explained by a
	// single transposition of two segments' content, at any two
	// positions — not just adjacent ones — which is the structural
	// signature of an on-disk filename-swap (spec §8 "any two chunk
	// files swapped") — before falling back to a generic mismatch.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if trySwap(segHashes, i, j, declaredTip) {
				return outOfOrderErr(i, i, segHashes[i])
			}
		}
	}

	return tipMismatchErr()
}

// trySwap recomputes the chain with positions i and j's hashes
// exchanged and reports whether that reproduces declaredTip.
func trySwap(segHashes [][32]byte, i, j int, declaredTip [32]byte) bool {
	swapped := make([][32]byte, len(segHashes))
	copy(swapped, segHashes)
	swapped[i], swapped[j] = swapped[j], swapped[i]

	h := Genesis()
	for _, sh := range swapped {
		h = Next(h, sh)
	}
	return h == declaredTip
}
