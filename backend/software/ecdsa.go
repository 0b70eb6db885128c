/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package software

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"
)

// p256ScalarTo32Bytes left-pads a P-256 private scalar to the fixed
// 32-byte width crypto/ecdh requires, since big.Int.Bytes() strips
// leading zeroes.
func p256ScalarTo32Bytes(d []byte) []byte {
	out := make([]byte, 32)
	if len(d) > 32 {
		d = d[len(d)-32:]
	}
	copy(out[32-len(d):], d)
	return out
}

// ecdsaPrivateFromBytes reconstructs a P-256 private key from its
// stored scalar, recomputing the public point.
func ecdsaPrivateFromBytes(d []byte) *ecdsa.PrivateKey {
	curve := elliptic.P256()
	priv := new(ecdsa.PrivateKey)
	priv.D = new(big.Int).SetBytes(d)
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d)
	return priv
}
