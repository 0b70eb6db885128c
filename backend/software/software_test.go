/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package software

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trustedge-labs/trustedge/primitives"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := OpenStore(filepath.Join(dir, "keys.db"), []byte("correct horse battery staple"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGenerateSignVerifyEd25519(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(openTestStore(t))

	_, err := b.GenerateKeyPair(ctx, "device-1", primitives.SigEd25519)
	require.NoError(t, err)

	data := []byte("manifest canonical bytes")
	sig, err := b.Sign(ctx, "device-1", data)
	require.NoError(t, err)

	ok, err := b.Verify(ctx, "device-1", data, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Verify(ctx, "device-1", []byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGenerateSignVerifyECDSAP256(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(openTestStore(t))

	_, err := b.GenerateKeyPair(ctx, "device-p256", primitives.SigECDSAP256)
	require.NoError(t, err)

	data := []byte("manifest canonical bytes")
	sig, err := b.Sign(ctx, "device-p256", data)
	require.NoError(t, err)

	ok, err := b.Verify(ctx, "device-p256", data, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAEADSealOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(openTestStore(t))
	_, err := b.GenerateKeyPair(ctx, "segment-key", primitives.SigEd25519)
	require.NoError(t, err)

	nonce, err := primitives.RandomBytes(primitives.AES256GCMNonceSize)
	require.NoError(t, err)
	aad := []byte("header||0")
	plaintext := []byte("segment plaintext")

	ct, err := b.AEADSeal(ctx, "segment-key", primitives.AEADAES256GCM, nonce, aad, plaintext)
	require.NoError(t, err)

	pt, err := b.AEADOpen(ctx, "segment-key", primitives.AEADAES256GCM, nonce, aad, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)

	_, err = b.AEADOpen(ctx, "segment-key", primitives.AEADAES256GCM, nonce, []byte("wrong-aad"), ct)
	require.Error(t, err)
}

func TestDeriveSharedMatchesBothSides(t *testing.T) {
	ctx := context.Background()
	bA := NewBackend(openTestStore(t))
	bB := NewBackend(openTestStore(t))

	_, err := bA.GenerateKeyPair(ctx, "eph-a", primitives.SigECDSAP256)
	require.NoError(t, err)
	_, err = bB.GenerateKeyPair(ctx, "eph-b", primitives.SigECDSAP256)
	require.NoError(t, err)

	pubA, err := bA.GetPublicKey(ctx, "eph-a")
	require.NoError(t, err)
	pubB, err := bB.GetPublicKey(ctx, "eph-b")
	require.NoError(t, err)

	sharedA, err := bA.DeriveShared(ctx, "eph-a", pubB)
	require.NoError(t, err)
	sharedB, err := bB.DeriveShared(ctx, "eph-b", pubA)
	require.NoError(t, err)

	require.Equal(t, sharedA, sharedB)
}

func TestAttestProducesVerifiableJWT(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(openTestStore(t))
	_, err := b.GenerateKeyPair(ctx, "device-1", primitives.SigEd25519)
	require.NoError(t, err)

	blob, err := b.Attest(ctx, "device-1")
	require.NoError(t, err)
	require.NotEmpty(t, blob)
}

func TestCapabilitiesNeverAdvertiseK256(t *testing.T) {
	b := NewBackend(openTestStore(t))
	for _, alg := range b.Capabilities().SigAlgs {
		require.NotEqual(t, primitives.SigECDSAK256, alg)
	}
}
