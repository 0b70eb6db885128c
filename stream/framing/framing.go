/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package framing implements the stream mode wire framing: a
// length-prefixed record codec shared by the handshake and the sealed
// chunk protocol, so both layer on the same overflow and I/O
// discipline. Modeled on the ingest wire helpers' length-prefix-then-
// io.ReadFull pattern, generalized to a single reusable codec instead
// of one bespoke Read/Write pair per message type.
package framing

import (
	"encoding/binary"
	"errors"
	"io"
)

// DefaultMaxFrameBytes is the configuration default, spec §4.8.
const DefaultMaxFrameBytes = 16 * 1024 * 1024

const lengthPrefixSize = 4

// ErrFrameTooLarge reports a length prefix (inbound) or payload
// (outbound) exceeding the configured maximum — spec's
// ProtocolViolation::FrameTooLarge.
var ErrFrameTooLarge = errors.New("framing: frame exceeds configured maximum")

// ReadFrame reads one length-prefixed record from r. The length is
// checked against maxBytes before any allocation, so an attacker
// cannot force a large allocation merely by sending a large length
// prefix.
func ReadFrame(r io.Reader, maxBytes uint32) ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxBytes {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed record to w.
func WriteFrame(w io.Writer, payload []byte, maxBytes uint32) error {
	if uint32(len(payload)) > maxBytes {
		return ErrFrameTooLarge
	}
	var lenBuf [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
