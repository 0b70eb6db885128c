/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package primitives

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// MinPBKDF2Iterations is the floor spec §4.1 requires for
// passphrase-derived keys.
const MinPBKDF2Iterations = 100_000

// PBKDF2SaltSize is the required explicit salt length for
// passphrase-derived keys.
const PBKDF2SaltSize = 16

var ErrIterationsTooLow = errors.New("primitives: PBKDF2 iteration count below floor")

// HKDFDeriveSHA256 derives keyLen bytes from ikm using HKDF-SHA256
// with the given salt and info, used for the stream-mode session key
// (spec §4.9).
func HKDFDeriveSHA256(salt, ikm, info []byte, keyLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, keyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PBKDF2DeriveSHA256 derives keyLen bytes from a passphrase using
// PBKDF2-SHA256, used by the software backend's key store to derive
// its key-encryption key from the store passphrase.
func PBKDF2DeriveSHA256(passphrase, salt []byte, iterations, keyLen int) ([]byte, error) {
	if iterations < MinPBKDF2Iterations {
		return nil, ErrIterationsTooLow
	}
	if len(salt) != PBKDF2SaltSize {
		return nil, errors.New("primitives: PBKDF2 salt must be 16 bytes")
	}
	return pbkdf2.Key(passphrase, salt, iterations, keyLen, sha256.New), nil
}
