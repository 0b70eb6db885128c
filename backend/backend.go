/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package backend defines the capability-typed cryptographic backend
// interface: the core never talks to a key directly, only to a
// Backend by key id, and never assumes a capability a backend hasn't
// advertised.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/trustedge-labs/trustedge/primitives"
)

// Capabilities is what a backend advertises about itself before the
// core ever asks it to do anything. The dispatcher trusts this
// entirely — it never probes by trial and error.
type Capabilities struct {
	HardwareBacked        bool
	SupportsAttestation   bool
	SupportsKeyDerivation bool
	AEADAlgs              []primitives.AEADAlg
	SigAlgs               []primitives.SigAlg
	MaxKeySize            int
}

func (c Capabilities) hasSigAlg(alg primitives.SigAlg) bool {
	for _, a := range c.SigAlgs {
		if a == alg {
			return true
		}
	}
	return false
}

func (c Capabilities) hasAEADAlg(alg primitives.AEADAlg) bool {
	for _, a := range c.AEADAlgs {
		if a == alg {
			return true
		}
	}
	return false
}

// KeyHandle identifies a key inside a backend. The core never sees
// the key material itself, only this handle.
type KeyHandle struct {
	KeyID   string
	SigAlg  primitives.SigAlg
	Backend string
}

// Backend is the capability interface every cryptographic provider
// (software, OS keyring, hardware token) implements. The core
// dispatches by capability match, never by a type switch over
// concrete backends.
type Backend interface {
	Name() string
	Capabilities() Capabilities

	GenerateKeyPair(ctx context.Context, keyID string, alg primitives.SigAlg) (KeyHandle, error)
	GetPublicKey(ctx context.Context, keyID string) ([]byte, error)
	Sign(ctx context.Context, keyID string, data []byte) ([]byte, error)
	Verify(ctx context.Context, keyID string, data, sig []byte) (bool, error)

	AEADSeal(ctx context.Context, keyID string, alg primitives.AEADAlg, nonce, aad, plaintext []byte) ([]byte, error)
	AEADOpen(ctx context.Context, keyID string, alg primitives.AEADAlg, nonce, aad, ciphertext []byte) ([]byte, error)

	// DeriveShared performs ECDH between the backend-held private key
	// keyID and peerPublic, returning the raw shared secret. Used by
	// the stream session handshake.
	DeriveShared(ctx context.Context, keyID string, peerPublic []byte) ([]byte, error)

	// Attest returns an optional attestation blob binding keyID to the
	// backend's identity claims. Backends that don't support
	// attestation return ErrNotSupported.
	Attest(ctx context.Context, keyID string) ([]byte, error)
}

// ErrorKind enumerates the BackendError{kind} taxonomy of spec §7.
type ErrorKind int

const (
	KindNoCapableBackend ErrorKind = iota
	KindKeyNotFound
	KindHardwareFault
	KindLocked
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoCapableBackend:
		return "NoCapableBackend"
	case KindKeyNotFound:
		return "KeyNotFound"
	case KindHardwareFault:
		return "HardwareFault"
	case KindLocked:
		return "Locked"
	default:
		return "Unknown"
	}
}

// Error is the structured BackendError of spec §7.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: %s (%s): %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("backend: %s (%s)", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

func noCapableBackend(op string) error {
	return &Error{Kind: KindNoCapableBackend, Op: op}
}

// ErrNotSupported is returned by optional operations (Attest) a
// backend genuinely does not implement, as opposed to a capability
// mismatch the registry should have already filtered out.
var ErrNotSupported = errors.New("backend: operation not supported")
