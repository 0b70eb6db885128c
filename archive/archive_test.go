/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package archive

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trustedge-labs/trustedge/chain"
	"github.com/trustedge-labs/trustedge/manifest"
	"github.com/trustedge-labs/trustedge/primitives"
)

func b64str(n int) string {
	return base64.StdEncoding.EncodeToString(make([]byte, n))
}

func fixedTime() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func marshalManifest(m manifest.Manifest) ([]byte, error) {
	return json.Marshal(m)
}

func buildArchive(t *testing.T, root string, segCount int) (string, [][]byte) {
	t.Helper()
	dir := filepath.Join(root, "archive.trst")
	w, err := CreateWriter(dir)
	require.NoError(t, err)

	segs := make([][]byte, segCount)
	h := chain.Genesis()
	for i := 0; i < segCount; i++ {
		segs[i] = []byte{byte(i), byte(i + 1), byte(i + 2)}
		require.NoError(t, w.WriteChunk(i, segs[i]))
		h = chain.Next(h, chain.SegmentHash(segs[i]))
	}

	body := manifest.Body{
		TrstVersion: manifest.TrstVersion,
		Profile:     "video",
		Device: manifest.Device{
			ID:        "dev-1",
			PublicKey: "ed25519:" + b64str(32),
		},
		Capture: manifest.Capture{StartedAt: fixedTime()},
		Chunk: manifest.Chunk{
			SizeBytes:   3,
			AEADAlg:     "xchacha20poly1305",
			NoncePrefix: "xchacha20poly1305:" + b64str(24),
		},
		Segments: manifest.Segments{
			Count:     segCount,
			ChainRoot: "b3:" + b64str(32),
			ChainTip:  "b3:" + b64str(32),
		},
	}
	m := manifest.Manifest{Body: body, Signature: "ed25519:" + b64str(64)}
	mj, err := marshalManifest(m)
	require.NoError(t, err)

	_, sigBody, err := primitives.DecodeTagged(m.Signature)
	require.NoError(t, err)

	require.NoError(t, w.WriteManifest(mj, sigBody))
	require.NoError(t, w.Finalize())

	return dir, segs
}

func TestWriterThenReaderHappyPath(t *testing.T) {
	dir, segs := buildArchive(t, t.TempDir(), 4)

	r, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, len(segs), r.Count())

	for i, want := range segs {
		rc, err := r.Open(i)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.Equal(t, want, got)
	}
}

func TestReaderDetectsGap(t *testing.T) {
	dir, _ := buildArchive(t, t.TempDir(), 4)
	require.NoError(t, os.Remove(filepath.Join(dir, ChunksDirName, chunkFileName(2))))

	r, err := Open(dir)
	require.NoError(t, err)
	var be *chain.BrokenError
	require.ErrorAs(t, r.ContiguityError(), &be)
	require.Equal(t, chain.KindGap, be.Kind)
	require.Equal(t, 2, be.Index)
}

func TestReaderDetectsTruncation(t *testing.T) {
	dir, _ := buildArchive(t, t.TempDir(), 4)
	require.NoError(t, os.Remove(filepath.Join(dir, ChunksDirName, chunkFileName(3))))

	r, err := Open(dir)
	require.NoError(t, err)
	var be *chain.BrokenError
	require.ErrorAs(t, r.ContiguityError(), &be)
	require.Equal(t, chain.KindEndOfChainTruncated, be.Kind)
}

func TestReaderRejectsMalformedChunkName(t *testing.T) {
	dir, _ := buildArchive(t, t.TempDir(), 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChunksDirName, "not-a-chunk.bin"), []byte("x"), 0o644))

	_, err := Open(dir)
	require.Error(t, err)
	var le *LayoutError
	require.ErrorAs(t, err, &le)
}

func TestReaderRejectsSignatureMismatch(t *testing.T) {
	dir, _ := buildArchive(t, t.TempDir(), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, SignatureDirName, SignatureFileName), []byte("tampered-signature-bytes!!"), 0o644))

	_, err := Open(dir)
	require.Error(t, err)
	var le *LayoutError
	require.ErrorAs(t, err, &le)
}

func TestCreateWriterRefusesExistingDir(t *testing.T) {
	dir, _ := buildArchive(t, t.TempDir(), 1)
	_, err := CreateWriter(dir)
	require.Error(t, err)
}

func TestWriterDiscardLeavesNothingVisible(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "archive.trst")
	w, err := CreateWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk(0, []byte("x")))
	require.NoError(t, w.Discard())

	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}
