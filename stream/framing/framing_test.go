/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("sealed chunk bytes")
	require.NoError(t, WriteFrame(&buf, payload, DefaultMaxFrameBytes))

	got, err := ReadFrame(&buf, DefaultMaxFrameBytes)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, 17), 16)
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.Zero(t, buf.Len())
}

func TestReadFrameRejectsOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	// Write a 100-byte frame and read it back with a 16-byte maximum —
	// ReadFrame must reject on the length prefix alone, before reading
	// the payload.
	require.NoError(t, WriteFrame(&buf, make([]byte, 100), 1<<20))
	_, err := ReadFrame(&buf, 16)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameAtExactMaximumAccepted(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 16)
	require.NoError(t, WriteFrame(&buf, payload, 16))
	got, err := ReadFrame(&buf, 16)
	require.NoError(t, err)
	require.Len(t, got, 16)
}
