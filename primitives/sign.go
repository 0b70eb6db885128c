/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package primitives

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

// SigAlg names a supported signature algorithm. The interface admits
// more algorithms than the software backend implements: K-256 is
// reserved for hardware-token backends (see backend/software package doc) so
// it is named here but has no Sign/Verify case of its own.
type SigAlg string

const (
	SigEd25519   SigAlg = "ed25519"
	SigECDSAP256 SigAlg = "ecdsa-p256"
	SigECDSAK256 SigAlg = "ecdsa-k256" // admitted for capability negotiation only; see backend doc.
)

var (
	ErrUnknownSigAlg    = errors.New("primitives: unknown signature algorithm")
	ErrSignatureInvalid = errors.New("primitives: signature verification failed")
)

// SignEd25519 signs data with an Ed25519 private key.
func SignEd25519(priv ed25519.PrivateKey, data []byte) []byte {
	return ed25519.Sign(priv, data)
}

// VerifyEd25519 verifies sig over data against an Ed25519 public key.
func VerifyEd25519(pub ed25519.PublicKey, data, sig []byte) bool {
	return ed25519.Verify(pub, data, sig)
}

// SignECDSAP256 signs the SHA-256 digest of data with a P-256 private
// key, returning an ASN.1 DER signature.
func SignECDSAP256(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, priv, digest[:])
}

// VerifyECDSAP256 verifies an ASN.1 DER signature over the SHA-256
// digest of data against a P-256 public key.
func VerifyECDSAP256(pub *ecdsa.PublicKey, data, sig []byte) bool {
	if pub.Curve != elliptic.P256() {
		return false
	}
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

// Verify dispatches to the algorithm named by alg. pub is the raw
// encoded public key (Ed25519: 32 bytes; ECDSA P-256: uncompressed
// SEC1 point, 65 bytes). It never returns an error that distinguishes
// "bad key encoding" from "signature mismatch" beyond ErrSignatureInvalid,
// matching the "no leaked detail" propagation policy of spec §7.
func Verify(alg SigAlg, pub, data, sig []byte) error {
	switch alg {
	case SigEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return ErrSignatureInvalid
		}
		if !VerifyEd25519(ed25519.PublicKey(pub), data, sig) {
			return ErrSignatureInvalid
		}
		return nil
	case SigECDSAP256:
		x, y := elliptic.Unmarshal(elliptic.P256(), pub)
		if x == nil {
			return ErrSignatureInvalid
		}
		pk := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
		if !VerifyECDSAP256(pk, data, sig) {
			return ErrSignatureInvalid
		}
		return nil
	case SigECDSAK256:
		// No in-core verifier: K-256 only ever appears via a hardware
		// backend's own verification path, never the core's.
		return ErrUnknownSigAlg
	default:
		return ErrUnknownSigAlg
	}
}
