/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEADAlg names a supported AEAD algorithm. Backends advertise the
// subset they can actually perform; the dispatcher never silently
// substitutes one for another.
type AEADAlg string

const (
	AEADXChaCha20Poly1305 AEADAlg = "xchacha20poly1305"
	AEADAES256GCM         AEADAlg = "aes256gcm"
)

// Nonce sizes, in bytes, for each supported AEAD.
const (
	XChaCha20NonceSize = chacha20poly1305.NonceSizeX // 24
	AES256GCMNonceSize = 12
)

var (
	ErrUnknownAEAD  = errors.New("primitives: unknown AEAD algorithm")
	ErrKeySize      = errors.New("primitives: wrong key size for AEAD")
	ErrNonceSize    = errors.New("primitives: wrong nonce size for AEAD")
	ErrSegmentOpen  = errors.New("primitives: AEAD open failed")
)

// NewAEAD constructs the cipher.AEAD for alg using a 32-byte key.
func NewAEAD(alg AEADAlg, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AEADXChaCha20Poly1305:
		if len(key) != chacha20poly1305.KeySize {
			return nil, ErrKeySize
		}
		return chacha20poly1305.NewX(key)
	case AEADAES256GCM:
		if len(key) != 32 {
			return nil, ErrKeySize
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, ErrUnknownAEAD
	}
}

// NonceSize returns the expected nonce length for alg.
func NonceSize(alg AEADAlg) (int, error) {
	switch alg {
	case AEADXChaCha20Poly1305:
		return XChaCha20NonceSize, nil
	case AEADAES256GCM:
		return AES256GCMNonceSize, nil
	default:
		return 0, ErrUnknownAEAD
	}
}

// Seal encrypts and authenticates plaintext under key/nonce/aad using
// alg, returning ciphertext||tag exactly as the underlying primitive
// produces it — no re-encoding.
func Seal(alg AEADAlg, key, nonce, aad, plaintext []byte) ([]byte, error) {
	a, err := NewAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != a.NonceSize() {
		return nil, ErrNonceSize
	}
	return a.Seal(nil, nonce, plaintext, aad), nil
}

// Open authenticates and decrypts ciphertext, returning ErrSegmentOpen
// (never the raw library error) on any tag-verification failure so
// callers never learn more than "it failed".
func Open(alg AEADAlg, key, nonce, aad, ciphertext []byte) ([]byte, error) {
	a, err := NewAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != a.NonceSize() {
		return nil, ErrNonceSize
	}
	pt, err := a.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrSegmentOpen
	}
	return pt, nil
}

// BuildNonce derives nonce = prefix||u64_be(counter), zero-padding or
// truncating the counter's contribution so the result is exactly
// size bytes, per spec §4.5 step 5.
func BuildNonce(prefix []byte, counter uint64, size int) ([]byte, error) {
	if len(prefix) > size {
		return nil, ErrNonceSize
	}
	nonce := make([]byte, size)
	copy(nonce, prefix)
	var cb [8]byte
	for i := 0; i < 8; i++ {
		cb[7-i] = byte(counter >> (8 * i))
	}
	tailStart := len(prefix)
	tailLen := size - tailStart
	if tailLen > 8 {
		tailLen = 8
	}
	copy(nonce[tailStart:], cb[8-tailLen:])
	return nonce, nil
}
