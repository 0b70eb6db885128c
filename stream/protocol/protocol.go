/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package protocol implements the stream mode sealed-chunk wire
// record and its receive-side invariants: strict sequence contiguity,
// a replay window, and AEAD/plaintext-hash verification bound to the
// session that produced the chunk, spec §4.10.
package protocol

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/trustedge-labs/trustedge/primitives"
	"github.com/trustedge-labs/trustedge/stream/framing"
	"github.com/trustedge-labs/trustedge/stream/session"
)

// replayWindow is the anti-replay timestamp bound, spec §4.10.
const replayWindow = 5 * time.Minute

// ChunkManifest is the small per-chunk metadata carried alongside the
// ciphertext — distinct from the archive manifest of file mode, whose
// fields describe an entire archive rather than one wire record.
type ChunkManifest struct {
	Sequence      uint64 `json:"sequence"`
	HeaderHash    []byte `json:"header_hash"`
	KeyID         string `json:"key_id"`
	PlaintextHash []byte `json:"plaintext_hash"`
}

// SealedChunk is the on-wire record for one sealed chunk, spec §4.10.
type SealedChunk struct {
	Sequence         uint64 `json:"sequence"`
	Ciphertext       []byte `json:"ciphertext"`
	ManifestBytes    []byte `json:"manifest_bytes"`
	Nonce            []byte `json:"nonce"`
	TimestampSeconds int64  `json:"timestamp_seconds"`
}

// WriteChunk frames and writes one SealedChunk.
func WriteChunk(w framingWriter, c SealedChunk, maxFrame uint32) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return framing.WriteFrame(w, b, maxFrame)
}

// ReadChunk reads and unframes one SealedChunk.
func ReadChunk(r framingReader, maxFrame uint32) (SealedChunk, error) {
	var c SealedChunk
	b, err := framing.ReadFrame(r, maxFrame)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, malformedErr("%v", err)
	}
	return c, nil
}

// framingWriter/framingReader avoid importing io directly twice over;
// any io.Writer/io.Reader satisfies these.
type framingWriter interface {
	Write(p []byte) (int, error)
}
type framingReader interface {
	Read(p []byte) (int, error)
}

// Receiver enforces strict sequence contiguity for one session: no
// gaps, no reuse, no reordering. The receiver never buffers
// out-of-order chunks to reorder them, it rejects them outright.
type Receiver struct {
	sess        *session.Session
	nextExpected uint64
	now         func() time.Time
}

// NewReceiver builds a Receiver bound to sess. now defaults to
// time.Now if nil; tests supply a fixed clock.
func NewReceiver(sess *session.Session, now func() time.Time) *Receiver {
	if now == nil {
		now = time.Now
	}
	return &Receiver{sess: sess, now: now}
}

// Accept validates and opens one chunk against the session's
// invariants, returning the plaintext on success. Any failure is
// terminal for that chunk; the caller decides whether to close the
// connection (spec: security-class failures should).
func (r *Receiver) Accept(c SealedChunk) ([]byte, error) {
	if len(c.Nonce) != 12 {
		return nil, malformedErr("nonce must be 12 bytes, got %d", len(c.Nonce))
	}
	if !bytes.Equal(c.Nonce[:4], r.sess.NoncePrefix[:]) {
		return nil, nonceMismatchErr()
	}
	var counter uint64
	for i := 0; i < 8; i++ {
		counter = counter<<8 | uint64(c.Nonce[4+i])
	}
	if counter != c.Sequence {
		return nil, nonceMismatchErr()
	}

	var m ChunkManifest
	if err := json.Unmarshal(c.ManifestBytes, &m); err != nil {
		return nil, malformedErr("chunk manifest: %v", err)
	}
	if m.Sequence != c.Sequence {
		return nil, malformedErr("manifest sequence %d != record sequence %d", m.Sequence, c.Sequence)
	}
	if m.KeyID != r.sess.KeyID {
		return nil, headerMismatchErr("key_id")
	}
	if len(m.HeaderHash) != 32 || [32]byte(m.HeaderHash) != r.sess.HeaderHash {
		return nil, headerMismatchErr("header_hash")
	}

	if c.Sequence != r.nextExpected {
		return nil, badSequenceErr(r.nextExpected, c.Sequence)
	}

	now := r.now()
	ts := time.Unix(c.TimestampSeconds, 0)
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > replayWindow {
		return nil, timestampOutOfWindowErr()
	}

	aad := buildAAD(r.sess.HeaderHash, c.Sequence, c.Nonce, c.ManifestBytes)
	keyBytes, err := r.sess.Key.Bytes()
	if err != nil {
		return nil, err
	}
	plaintext, err := primitives.Open(primitives.AEADAES256GCM, keyBytes, c.Nonce, aad, c.Ciphertext)
	if err != nil {
		return nil, segmentCorruptErr(c.Sequence, err)
	}

	plainHash := primitives.BLAKE3Sum(plaintext)
	if len(m.PlaintextHash) != 32 || [32]byte(m.PlaintextHash) != plainHash {
		return nil, segmentCorruptErr(c.Sequence, nil)
	}

	r.nextExpected++
	return plaintext, nil
}

// Seal builds and seals one SealedChunk for sending: the mirror image
// of Receiver.Accept, called by the sending side of a session.
func Seal(sess *session.Session, sequence uint64, plaintext []byte, now time.Time) (SealedChunk, error) {
	nonce := make([]byte, 12)
	copy(nonce[:4], sess.NoncePrefix[:])
	for i := 0; i < 8; i++ {
		nonce[4+i] = byte(sequence >> (8 * (7 - i)))
	}

	plainHash := primitives.BLAKE3Sum(plaintext)
	m := ChunkManifest{
		Sequence:      sequence,
		HeaderHash:    sess.HeaderHash[:],
		KeyID:         sess.KeyID,
		PlaintextHash: plainHash[:],
	}
	manifestBytes, err := json.Marshal(m)
	if err != nil {
		return SealedChunk{}, err
	}

	aad := buildAAD(sess.HeaderHash, sequence, nonce, manifestBytes)
	keyBytes, err := sess.Key.Bytes()
	if err != nil {
		return SealedChunk{}, err
	}
	ciphertext, err := primitives.Seal(primitives.AEADAES256GCM, keyBytes, nonce, aad, plaintext)
	if err != nil {
		return SealedChunk{}, err
	}

	return SealedChunk{
		Sequence:         sequence,
		Ciphertext:       ciphertext,
		ManifestBytes:    manifestBytes,
		Nonce:            nonce,
		TimestampSeconds: now.Unix(),
	}, nil
}

// buildAAD forms session_header_hash || u64_be(sequence) || nonce ||
// BLAKE3(manifest_bytes), spec §4.10.
func buildAAD(headerHash [32]byte, sequence uint64, nonce, manifestBytes []byte) []byte {
	manifestHash := primitives.BLAKE3Sum(manifestBytes)
	aad := make([]byte, 0, 32+8+len(nonce)+32)
	aad = append(aad, headerHash[:]...)
	seqBE := make([]byte, 8)
	for i := 0; i < 8; i++ {
		seqBE[i] = byte(sequence >> (8 * (7 - i)))
	}
	aad = append(aad, seqBE...)
	aad = append(aad, nonce...)
	aad = append(aad, manifestHash[:]...)
	return aad
}
