/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package verify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustedge-labs/trustedge/archive"
	"github.com/trustedge-labs/trustedge/backend/software"
	"github.com/trustedge-labs/trustedge/manifest"
	"github.com/trustedge-labs/trustedge/primitives"
	"github.com/trustedge-labs/trustedge/wrap"
)

func newWrappedArchive(t *testing.T, segCount int) (string, *software.Backend, string) {
	t.Helper()
	store, err := software.OpenStore(filepath.Join(t.TempDir(), "keys.db"), []byte("test passphrase"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	be := software.NewBackend(store)
	_, err = be.GenerateKeyPair(context.Background(), "device-1", primitives.SigEd25519)
	require.NoError(t, err)
	pub, err := be.GetPublicKey(context.Background(), "device-1")
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := wrap.Config{
		Profile: "cam.video",
		Device:  manifest.Device{ID: "device-1", Model: "test-cam", PublicKey: primitives.EncodeTagged("ed25519", pub)},
		Capture: manifest.Capture{StartedAt: now, EndedAt: now.Add(time.Duration(segCount) * time.Second), FPS: 30},
		ChunkBytes:    16,
		ChunkDuration: 1.0,
		AEADAlg:       primitives.AEADXChaCha20Poly1305,
		SigAlg:        primitives.SigEd25519,
		KeyID:         "device-1",
	}
	e := wrap.New(be, nil)
	outDir := filepath.Join(t.TempDir(), "archive.trst")
	src := bytes.NewReader(bytes.Repeat([]byte("x"), 16*segCount))
	_, err = e.Wrap(context.Background(), src, cfg, outDir)
	require.NoError(t, err)
	return outDir, be, "device-1"
}

func TestVerifyPassesOnUntamperedArchive(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 5)
	v, err := New(nil).Verify(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, ResultPass, v.Signature)
	require.Equal(t, ResultPass, v.Continuity)
	require.Equal(t, ResultSkipped, v.Segments)
	require.True(t, v.Pass())
}

// S1: a chunk's ciphertext is altered in place — continuity must fail
// since the stored hash no longer matches.
func TestVerifyDetectsTamperedChunk(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 5)
	chunkPath := filepath.Join(dir, "chunks", "00002.bin")
	data, err := os.ReadFile(chunkPath)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(chunkPath, data, 0o644))

	v, err := New(nil).Verify(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, ResultFail, v.Continuity)
	require.False(t, v.Pass())
}

// S2: two chunks swap places — Reader's contiguity check does not
// catch it (filenames are still contiguous) but chain.Validate does.
func TestVerifyDetectsReorderedChunks(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 5)
	a := filepath.Join(dir, "chunks", "00001.bin")
	b := filepath.Join(dir, "chunks", "00002.bin")
	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(a, db, 0o644))
	require.NoError(t, os.WriteFile(b, da, 0o644))

	v, err := New(nil).Verify(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, ResultFail, v.Continuity)
}

// S3: the last chunk is deleted without updating segments.count —
// archive.Open still succeeds (manifest and signature are both
// structurally fine) but records the incompleteness, which Verify
// folds into a FAIL continuity verdict rather than a Go error.
func TestVerifyRejectsTruncatedArchive(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 5)
	require.NoError(t, os.Remove(filepath.Join(dir, "chunks", "00004.bin")))

	v, err := New(nil).Verify(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, ResultFail, v.Continuity)
	require.Equal(t, ResultSkipped, v.Segments)
	require.False(t, v.Pass())
}

// S5 (gap variant): an interior chunk is deleted, leaving a gap rather
// than a truncated tail — also surfaces as a FAIL continuity verdict.
func TestVerifyRejectsGappedArchive(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 5)
	require.NoError(t, os.Remove(filepath.Join(dir, "chunks", "00002.bin")))

	v, err := New(nil).Verify(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, ResultFail, v.Continuity)
	require.False(t, v.Pass())
}

// S4: the manifest body is edited after signing — the signature no
// longer covers the bytes on disk.
func TestVerifyDetectsManifestTamper(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 3)
	manifestPath := filepath.Join(dir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"test-cam"`), []byte(`"evil-cam"`), 1)
	require.NotEqual(t, data, tampered)
	require.NoError(t, os.WriteFile(manifestPath, tampered, 0o644))

	v, err := New(nil).Verify(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, ResultFail, v.Signature)
}

// S5: an expected public key supplied out-of-band disagrees with the
// one embedded in the manifest.
func TestVerifyRejectsMismatchedExpectedPublicKey(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 3)
	wrongPub := make([]byte, 32)
	wrongPub[0] = 0x01

	v, err := New(nil).Verify(dir, Options{ExpectedPublicKey: wrongPub})
	require.NoError(t, err)
	require.Equal(t, ResultFail, v.Signature)
}

// S6: an unresolvable prev_archive_hash is not itself a failure — a
// verifier may only ever see one archive of a sequence at a time.
func TestVerifyToleratesUnresolvablePrevArchiveHash(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 2)
	resolverCalled := false
	v, err := New(nil).Verify(dir, Options{
		PrevResolver: func(hash string) (*archive.Reader, error) {
			resolverCalled = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	require.True(t, v.Pass())
	// m.PrevArchiveHash is nil on a first-in-sequence archive, so the
	// resolver is never invoked.
	require.False(t, resolverCalled)
}

func TestVerifySegmentAuthenticityRoundTrip(t *testing.T) {
	dir, be, keyID := newWrappedArchive(t, 4)
	eng := New(nil)
	first, err := eng.Verify(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, ResultSkipped, first.Segments)

	r, err := archive.Open(dir)
	require.NoError(t, err)
	segKey, err := UnwrapSegmentKey(context.Background(), be, keyID, r.Manifest())
	require.NoError(t, err)
	defer segKey.Release()

	v, err := eng.Verify(dir, Options{
		SegmentKey:     segKey,
		SegmentAEADAlg: primitives.AEADXChaCha20Poly1305,
	})
	require.NoError(t, err)
	require.Equal(t, ResultPass, v.Segments)
	require.Equal(t, 4, v.SegmentN)
}

func TestVerifyCachesRepeatCallsAgainstUnchangedArchive(t *testing.T) {
	dir, _, _ := newWrappedArchive(t, 3)
	eng := New(nil)
	first, err := eng.Verify(dir, Options{})
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := eng.Verify(dir, Options{})
	require.NoError(t, err)
	require.True(t, second.FromCache)
	require.Equal(t, first.Signature, second.Signature)
}
