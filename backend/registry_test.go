/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trustedge-labs/trustedge/primitives"
)

type stubBackend struct {
	name string
	caps Capabilities
}

func (s *stubBackend) Name() string               { return s.name }
func (s *stubBackend) Capabilities() Capabilities  { return s.caps }
func (s *stubBackend) GenerateKeyPair(context.Context, string, primitives.SigAlg) (KeyHandle, error) {
	return KeyHandle{}, nil
}
func (s *stubBackend) GetPublicKey(context.Context, string) ([]byte, error)     { return nil, nil }
func (s *stubBackend) Sign(context.Context, string, []byte) ([]byte, error)     { return nil, nil }
func (s *stubBackend) Verify(context.Context, string, []byte, []byte) (bool, error) {
	return false, nil
}
func (s *stubBackend) AEADSeal(context.Context, string, primitives.AEADAlg, []byte, []byte, []byte) ([]byte, error) {
	return nil, nil
}
func (s *stubBackend) AEADOpen(context.Context, string, primitives.AEADAlg, []byte, []byte, []byte) ([]byte, error) {
	return nil, nil
}
func (s *stubBackend) DeriveShared(context.Context, string, []byte) ([]byte, error) { return nil, nil }
func (s *stubBackend) Attest(context.Context, string) ([]byte, error)               { return nil, ErrNotSupported }

func resetRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	registry = nil
	registryMu.Unlock()
}

func TestForSigAlgFindsCapableBackend(t *testing.T) {
	resetRegistry(t)
	Register(&stubBackend{name: "p256-token", caps: Capabilities{SigAlgs: []primitives.SigAlg{primitives.SigECDSAP256}}})
	Register(&stubBackend{name: "ed25519-soft", caps: Capabilities{SigAlgs: []primitives.SigAlg{primitives.SigEd25519}}})

	b, err := ForSigAlg(primitives.SigEd25519)
	require.NoError(t, err)
	require.Equal(t, "ed25519-soft", b.Name())
}

func TestForSigAlgNoCapableBackend(t *testing.T) {
	resetRegistry(t)
	Register(&stubBackend{name: "p256-token", caps: Capabilities{SigAlgs: []primitives.SigAlg{primitives.SigECDSAP256}}})

	_, err := ForSigAlg(primitives.SigECDSAK256)
	require.Error(t, err)
	var be *Error
	require.ErrorAs(t, err, &be)
	require.Equal(t, KindNoCapableBackend, be.Kind)
}

func TestGetByName(t *testing.T) {
	resetRegistry(t)
	Register(&stubBackend{name: "x"})
	b, ok := Get("x")
	require.True(t, ok)
	require.Equal(t, "x", b.Name())

	_, ok = Get("missing")
	require.False(t, ok)
}
