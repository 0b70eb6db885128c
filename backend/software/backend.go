/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package software

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trustedge-labs/trustedge/backend"
	"github.com/trustedge-labs/trustedge/primitives"
)

const backendName = "software"

// Backend is the in-core software implementation of backend.Backend.
// It never claims K-256: that algorithm identifier is reserved for
// hardware-token backends that actually implement secp256k1.
type Backend struct {
	store *Store
}

// NewBackend wraps an already-open Store as a backend.Backend.
func NewBackend(store *Store) *Backend {
	return &Backend{store: store}
}

// Register adds b to the process-wide backend registry. Callers
// construct a Backend from an opened Store (which needs a passphrase
// and a path, so it can't happen in an init() with no configuration)
// and then call Register once at startup.
func Register(b *Backend) {
	backend.Register(b)
}

func (b *Backend) Name() string { return backendName }

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		HardwareBacked:        false,
		SupportsAttestation:   true,
		SupportsKeyDerivation: true,
		AEADAlgs:              []primitives.AEADAlg{primitives.AEADXChaCha20Poly1305, primitives.AEADAES256GCM},
		SigAlgs:               []primitives.SigAlg{primitives.SigEd25519, primitives.SigECDSAP256},
		MaxKeySize:            64,
	}
}

// GenerateKeyPair creates a new signing keypair under keyID, sealing
// the private half in the store and returning a handle that never
// carries key material itself.
func (b *Backend) GenerateKeyPair(ctx context.Context, keyID string, alg primitives.SigAlg) (backend.KeyHandle, error) {
	var pub, priv []byte
	switch alg {
	case primitives.SigEd25519:
		pk, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return backend.KeyHandle{}, err
		}
		pub, priv = []byte(pk), []byte(sk)
	case primitives.SigECDSAP256:
		sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return backend.KeyHandle{}, err
		}
		pub = elliptic.Marshal(elliptic.P256(), sk.X, sk.Y)
		priv = sk.D.Bytes()
	default:
		return backend.KeyHandle{}, primitives.ErrUnknownSigAlg
	}

	ct, nonce, err := b.store.seal(priv)
	for i := range priv {
		priv[i] = 0
	}
	if err != nil {
		return backend.KeyHandle{}, err
	}
	if err := b.store.put(keyID, keyRecord{Alg: string(alg), PublicKey: pub, SealedPriv: ct, Nonce: nonce}); err != nil {
		return backend.KeyHandle{}, err
	}
	return backend.KeyHandle{KeyID: keyID, SigAlg: alg, Backend: backendName}, nil
}

func (b *Backend) GetPublicKey(ctx context.Context, keyID string) ([]byte, error) {
	rec, err := b.store.get(keyID)
	if err != nil {
		return nil, err
	}
	return rec.PublicKey, nil
}

func (b *Backend) withPrivate(keyID string, fn func(alg primitives.SigAlg, priv []byte) ([]byte, error)) ([]byte, error) {
	rec, err := b.store.get(keyID)
	if err != nil {
		return nil, err
	}
	priv, err := b.store.open(rec.SealedPriv, rec.Nonce)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range priv {
			priv[i] = 0
		}
	}()
	return fn(primitives.SigAlg(rec.Alg), priv)
}

func (b *Backend) Sign(ctx context.Context, keyID string, data []byte) ([]byte, error) {
	return b.withPrivate(keyID, func(alg primitives.SigAlg, priv []byte) ([]byte, error) {
		switch alg {
		case primitives.SigEd25519:
			return primitives.SignEd25519(ed25519.PrivateKey(priv), data), nil
		case primitives.SigECDSAP256:
			sk := ecdsaPrivateFromBytes(priv)
			return primitives.SignECDSAP256(sk, data)
		default:
			return nil, primitives.ErrUnknownSigAlg
		}
	})
}

func (b *Backend) Verify(ctx context.Context, keyID string, data, sig []byte) (bool, error) {
	rec, err := b.store.get(keyID)
	if err != nil {
		return false, err
	}
	err = primitives.Verify(primitives.SigAlg(rec.Alg), rec.PublicKey, data, sig)
	if err != nil {
		if err == primitives.ErrSignatureInvalid {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// aeadKeyFrom derives a 32-byte AEAD key from a backend-held secret of
// whatever native length it has (64 bytes for an Ed25519 priv, up to
// 32 for an ECDSA P-256 scalar with its leading zeroes stripped) so
// AEADSeal/AEADOpen never depend on the signing algorithm's private
// key happening to already be 32 bytes.
func aeadKeyFrom(secret []byte) ([]byte, error) {
	return primitives.HKDFDeriveSHA256(nil, secret, []byte("trustedge:backend:aead-key"), 32)
}

func (b *Backend) AEADSeal(ctx context.Context, keyID string, alg primitives.AEADAlg, nonce, aad, plaintext []byte) ([]byte, error) {
	rec, err := b.store.get(keyID)
	if err != nil {
		return nil, err
	}
	dataKey, err := b.store.open(rec.SealedPriv, rec.Nonce)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range dataKey {
			dataKey[i] = 0
		}
	}()
	aeadKey, err := aeadKeyFrom(dataKey)
	if err != nil {
		return nil, err
	}
	return primitives.Seal(alg, aeadKey, nonce, aad, plaintext)
}

func (b *Backend) AEADOpen(ctx context.Context, keyID string, alg primitives.AEADAlg, nonce, aad, ciphertext []byte) ([]byte, error) {
	rec, err := b.store.get(keyID)
	if err != nil {
		return nil, err
	}
	dataKey, err := b.store.open(rec.SealedPriv, rec.Nonce)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range dataKey {
			dataKey[i] = 0
		}
	}()
	aeadKey, err := aeadKeyFrom(dataKey)
	if err != nil {
		return nil, err
	}
	return primitives.Open(alg, aeadKey, nonce, aad, ciphertext)
}

// DeriveShared performs ECDH against an ECDSA P-256 key held by
// keyID. Used by the stream session handshake to combine ephemeral
// keys into a shared secret before HKDF.
func (b *Backend) DeriveShared(ctx context.Context, keyID string, peerPublic []byte) ([]byte, error) {
	return b.withPrivate(keyID, func(alg primitives.SigAlg, priv []byte) ([]byte, error) {
		if alg != primitives.SigECDSAP256 {
			return nil, fmt.Errorf("software: DeriveShared requires an ECDSA P-256 key, got %s", alg)
		}
		curve := ecdh.P256()
		ecdhPriv, err := curve.NewPrivateKey(p256ScalarTo32Bytes(priv))
		if err != nil {
			return nil, err
		}
		peerKey, err := curve.NewPublicKey(peerPublic)
		if err != nil {
			return nil, err
		}
		return ecdhPriv.ECDH(peerKey)
	})
}

// attestClaims is the JWT payload for Attest: a plainly labeled
// software attestation, never claiming hardware backing.
type attestClaims struct {
	KeyID          string `json:"key_id"`
	Alg            string `json:"alg"`
	HardwareBacked bool   `json:"hardware_backed"`
	jwt.RegisteredClaims
}

// Attest signs a claim binding keyID's public key and algorithm to
// the software backend's identity. It is explicitly not a hardware
// attestation — HardwareBacked is always false here.
func (b *Backend) Attest(ctx context.Context, keyID string) ([]byte, error) {
	rec, err := b.store.get(keyID)
	if err != nil {
		return nil, err
	}
	claims := attestClaims{
		KeyID:          keyID,
		Alg:            rec.Alg,
		HardwareBacked: false,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    backendName,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)

	var signed string
	_, err = b.withPrivate(keyID, func(alg primitives.SigAlg, priv []byte) ([]byte, error) {
		if alg != primitives.SigEd25519 {
			return nil, fmt.Errorf("software: Attest requires an Ed25519 key, got %s", alg)
		}
		s, signErr := token.SignedString(ed25519.PrivateKey(priv))
		if signErr != nil {
			return nil, signErr
		}
		signed = s
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return []byte(signed), nil
}
