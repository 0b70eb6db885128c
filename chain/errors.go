/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package chain implements the continuity chain: a BLAKE3-based
// per-segment link from a genesis constant to a final tip, such that
// any reorder, gap, or truncation of the segment sequence is
// detectable without needing the segment decryption keys.
package chain

import "fmt"

// Kind enumerates the ways a chain can fail to validate, per spec
// §4.3's failure taxonomy.
type Kind int

const (
	KindGap Kind = iota
	KindOutOfOrder
	KindEndOfChainTruncated
	KindTipMismatch
)

func (k Kind) String() string {
	switch k {
	case KindGap:
		return "Gap"
	case KindOutOfOrder:
		return "OutOfOrder"
	case KindEndOfChainTruncated:
		return "EndOfChainTruncated"
	case KindTipMismatch:
		return "TipMismatch"
	default:
		return "Unknown"
	}
}

// BrokenError is the structured ChainBroken{kind} error of spec §4.3/§4.6.
type BrokenError struct {
	Kind Kind
	// Index is meaningful for Gap and OutOfOrder.
	Index int
	// Expected/Found are meaningful for OutOfOrder: Expected is the
	// index whose content is now missing, Found is the segment hash
	// that was found occupying that index instead.
	Expected int
	Found    [32]byte
}

func (e *BrokenError) Error() string {
	switch e.Kind {
	case KindGap:
		return fmt.Sprintf("chain: gap at segment %d", e.Index)
	case KindOutOfOrder:
		return fmt.Sprintf("chain: out of order at segment %d (expected content for %d)", e.Index, e.Expected)
	case KindEndOfChainTruncated:
		return "chain: truncated, final segment missing or tip mismatch at end"
	case KindTipMismatch:
		return "chain: recomputed tip does not match declared chain_tip"
	default:
		return "chain: broken"
	}
}

func gapErr(index int) error {
	return &BrokenError{Kind: KindGap, Index: index}
}

func outOfOrderErr(index, expected int, found [32]byte) error {
	return &BrokenError{Kind: KindOutOfOrder, Index: index, Expected: expected, Found: found}
}

func truncatedErr() error {
	return &BrokenError{Kind: KindEndOfChainTruncated}
}

func tipMismatchErr() error {
	return &BrokenError{Kind: KindTipMismatch}
}

// NewGapError reports a missing segment at index, detected by the
// archive layer during directory enumeration (a structural absence,
// not a hash-chain divergence).
func NewGapError(index int) error {
	return gapErr(index)
}

// NewTruncatedError reports that fewer chunk files exist than the
// manifest's declared segment count, with no interior gap — the
// archive was cut short at the end.
func NewTruncatedError() error {
	return truncatedErr()
}
