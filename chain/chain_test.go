/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package chain

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type memSource struct {
	segs [][]byte
}

func (m memSource) Count() int { return len(m.segs) }

func (m memSource) Open(i int) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.segs[i])), nil
}

func buildSegs(n int) [][]byte {
	segs := make([][]byte, n)
	for i := range segs {
		segs[i] = []byte{byte(i), byte(i + 1), byte(i + 2)}
	}
	return segs
}

func tipOf(segs [][]byte) [32]byte {
	h := Genesis()
	for _, s := range segs {
		h = Next(h, SegmentHash(s))
	}
	return h
}

func TestValidateHappyPath(t *testing.T) {
	segs := buildSegs(32)
	tip := tipOf(segs)
	require.NoError(t, Validate(memSource{segs}, tip))
}

func TestValidateEmptyArchive(t *testing.T) {
	require.NoError(t, Validate(memSource{nil}, Genesis()))
}

func TestValidateSwapDetected(t *testing.T) {
	segs := buildSegs(16)
	tip := tipOf(segs)

	segs[10], segs[11] = segs[11], segs[10]

	err := Validate(memSource{segs}, tip)
	var be *BrokenError
	require.ErrorAs(t, err, &be)
	require.Equal(t, KindOutOfOrder, be.Kind)
	require.Equal(t, 10, be.Index)
}

func TestValidateNonAdjacentSwapDetected(t *testing.T) {
	segs := buildSegs(16)
	tip := tipOf(segs)

	segs[2], segs[13] = segs[13], segs[2]

	err := Validate(memSource{segs}, tip)
	var be *BrokenError
	require.ErrorAs(t, err, &be)
	require.Equal(t, KindOutOfOrder, be.Kind)
	require.Equal(t, 2, be.Index)
	require.Equal(t, 2, be.Expected)
}

func TestValidateTamperedByteIsMismatchNotSilent(t *testing.T) {
	segs := buildSegs(16)
	tip := tipOf(segs)

	segs[5][0] ^= 0xFF

	err := Validate(memSource{segs}, tip)
	var be *BrokenError
	require.ErrorAs(t, err, &be)
	require.Equal(t, KindTipMismatch, be.Kind)
}
