/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package protocol

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustedge-labs/trustedge/primitives"
	"github.com/trustedge-labs/trustedge/stream/session"
)

func testSession(t *testing.T) *session.Session {
	t.Helper()
	key, err := primitives.RandomBytes(32)
	require.NoError(t, err)
	return &session.Session{
		Key:         primitives.NewSecret(key),
		HeaderHash:  [32]byte{1, 2, 3, 4},
		NoncePrefix: [4]byte{9, 9, 9, 9},
		KeyID:       "session:test",
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSealAcceptRoundTrip(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	chunk, err := Seal(sess, 0, []byte("frame bytes"), now)
	require.NoError(t, err)

	r := NewReceiver(sess, fixedClock(now))
	plaintext, err := r.Accept(chunk)
	require.NoError(t, err)
	require.Equal(t, []byte("frame bytes"), plaintext)
}

func TestAcceptRejectsReplayedSequence(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewReceiver(sess, fixedClock(now))

	chunk0, err := Seal(sess, 0, []byte("first"), now)
	require.NoError(t, err)
	_, err = r.Accept(chunk0)
	require.NoError(t, err)

	_, err = r.Accept(chunk0)
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, BadSequence, verr.Kind)
}

func TestAcceptRejectsGapInSequence(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewReceiver(sess, fixedClock(now))

	chunk1, err := Seal(sess, 1, []byte("second"), now)
	require.NoError(t, err)
	_, err = r.Accept(chunk1)
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, BadSequence, verr.Kind)
}

func TestAcceptRejectsTamperedNoncePrefix(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chunk, err := Seal(sess, 0, []byte("frame bytes"), now)
	require.NoError(t, err)
	chunk.Nonce[0] ^= 0xFF

	r := NewReceiver(sess, fixedClock(now))
	_, err = r.Accept(chunk)
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, NonceMismatch, verr.Kind)
}

func TestAcceptRejectsSequenceCounterNotMatchingNonce(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chunk, err := Seal(sess, 0, []byte("frame bytes"), now)
	require.NoError(t, err)
	chunk.Nonce[11] ^= 0xFF

	r := NewReceiver(sess, fixedClock(now))
	_, err = r.Accept(chunk)
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, NonceMismatch, verr.Kind)
}

func TestAcceptRejectsWrongKeyID(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chunk, err := Seal(sess, 0, []byte("frame bytes"), now)
	require.NoError(t, err)

	other := testSession(t)
	other.HeaderHash = sess.HeaderHash
	other.NoncePrefix = sess.NoncePrefix
	other.KeyID = "session:different"

	r := NewReceiver(other, fixedClock(now))
	_, err = r.Accept(chunk)
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, HeaderMismatch, verr.Kind)
}

func TestAcceptRejectsWrongHeaderHash(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chunk, err := Seal(sess, 0, []byte("frame bytes"), now)
	require.NoError(t, err)

	other := testSession(t)
	other.KeyID = sess.KeyID
	other.NoncePrefix = sess.NoncePrefix
	other.HeaderHash = [32]byte{9, 9, 9, 9}

	r := NewReceiver(other, fixedClock(now))
	_, err = r.Accept(chunk)
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, HeaderMismatch, verr.Kind)
}

func TestAcceptRejectsTimestampOutsideReplayWindow(t *testing.T) {
	sess := testSession(t)
	sealedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chunk, err := Seal(sess, 0, []byte("frame bytes"), sealedAt)
	require.NoError(t, err)

	tooLate := sealedAt.Add(replayWindow + time.Second)
	r := NewReceiver(sess, fixedClock(tooLate))
	_, err = r.Accept(chunk)
	require.Error(t, err)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, TimestampOutOfWindow, verr.Kind)
}

func TestAcceptAllowsTimestampAtExactBoundary(t *testing.T) {
	sess := testSession(t)
	sealedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chunk, err := Seal(sess, 0, []byte("frame bytes"), sealedAt)
	require.NoError(t, err)

	atBoundary := sealedAt.Add(replayWindow)
	r := NewReceiver(sess, fixedClock(atBoundary))
	_, err = r.Accept(chunk)
	require.NoError(t, err)
}

func TestAcceptRejectsCorruptedCiphertext(t *testing.T) {
	sess := testSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	chunk, err := Seal(sess, 0, []byte("frame bytes"), now)
	require.NoError(t, err)
	chunk.Ciphertext[0] ^= 0xFF

	r := NewReceiver(sess, fixedClock(now))
	_, err = r.Accept(chunk)
	require.Error(t, err)
	var cerr *SegmentCorruptError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, uint64(0), cerr.Sequence)
}

func TestReadChunkRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	err := WriteChunk(&buf, SealedChunk{Ciphertext: make([]byte, 1024)}, 1<<16)
	require.NoError(t, err)

	_, err = ReadChunk(&buf, 16)
	require.Error(t, err)
}
