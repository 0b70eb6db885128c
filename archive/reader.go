/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package archive

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/trustedge-labs/trustedge/chain"
	"github.com/trustedge-labs/trustedge/manifest"
	"github.com/trustedge-labs/trustedge/primitives"
)

// Reader opens an existing .trst archive directory, validating its
// structural layout (required files present, no stray entries inside
// chunks/, chunk filenames well-formed) without touching the continuity
// chain or any
// signature key material — both of those are the verify engine's job,
// layered on top of Reader. A chunk sequence that is present but
// structurally incomplete (an interior gap, or fewer chunks than
// declared) does not fail Open; it is recorded on the Reader for the
// verify engine to fold into a FAIL verdict rather than a Go error,
// since a verifier must still be able to report what it found. The
// archive root and signatures/ are not scanned for extra files.
type Reader struct {
	dir           string
	m             manifest.Manifest
	sigRaw        []byte
	chunkCount    int
	contiguityErr error
}

// Open reads and structurally validates the archive at dir. It does
// not verify the manifest signature or walk the continuity chain;
// callers needing those checks use verify.Engine, which is built on
// top of Reader.
func Open(dir string) (*Reader, error) {
	manifestBytes, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, layoutErr("missing %s", ManifestFileName)
		}
		return nil, err
	}
	m, err := manifest.Parse(manifestBytes)
	if err != nil {
		return nil, err
	}

	sigPath := filepath.Join(dir, SignatureDirName, SignatureFileName)
	sigRaw, err := os.ReadFile(sigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, layoutErr("missing %s/%s", SignatureDirName, SignatureFileName)
		}
		return nil, err
	}
	_, sigBody, err := primitives.DecodeTagged(m.Signature)
	if err != nil {
		return nil, layoutErr("manifest signature field is not a valid tagged value")
	}
	if !equalBytes(sigBody, sigRaw) {
		return nil, layoutErr("detached signature file does not match manifest's embedded signature")
	}

	count, contigErr, err := enumerateChunks(dir, m.Segments.Count)
	if err != nil {
		return nil, err
	}

	return &Reader{dir: dir, m: m, sigRaw: sigRaw, chunkCount: count, contiguityErr: contigErr}, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// enumerateChunks lists the chunks/ directory and checks that its
// filenames are well-formed and within the declared segment count —
// a malformed name, a stray subdirectory, or an index beyond the
// declared count is a LayoutError and fails outright. A missing
// interior index (Gap) or a short, gap-free run (EndOfChainTruncated)
// is not a LayoutError: it is returned as a *chain.BrokenError
// alongside the number of chunks actually present, for the caller to
// decide how to report it, rather than failing Open itself.
func enumerateChunks(dir string, declaredCount int) (count int, contiguityErr error, err error) {
	chunksDir := filepath.Join(dir, ChunksDirName)
	entries, err := os.ReadDir(chunksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, layoutErr("missing %s directory", ChunksDirName)
		}
		return 0, nil, err
	}

	present := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			return 0, nil, layoutErr("unexpected subdirectory %q in %s", e.Name(), ChunksDirName)
		}
		idx, ok := parseChunkIndex(e.Name())
		if !ok {
			return 0, nil, layoutErr("malformed chunk filename %q", e.Name())
		}
		if idx >= declaredCount {
			return 0, nil, layoutErr("chunk file %q exceeds declared segment count %d", e.Name(), declaredCount)
		}
		present[idx] = true
	}

	indices := make([]int, 0, len(present))
	for idx := range present {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for i, idx := range indices {
		if idx != i {
			return len(present), chain.NewGapError(i), nil
		}
	}

	if len(present) < declaredCount {
		return len(present), chain.NewTruncatedError(), nil
	}

	return len(present), nil, nil
}

// Manifest returns the parsed, structurally-valid manifest.
func (r *Reader) Manifest() manifest.Manifest {
	return r.m
}

// ContiguityError reports a Gap or EndOfChainTruncated detected while
// scanning the chunks directory, or nil if the chunk sequence is
// complete and in order. Callers must check this before walking the
// continuity chain or opening chunks by count: chain.Validate and
// Reader.Open(i) both assume indices 0..Count()-1 are all present,
// which does not hold while this is non-nil.
func (r *Reader) ContiguityError() error {
	return r.contiguityErr
}

// DetachedSignature returns the raw signature bytes from
// signatures/manifest.sig.
func (r *Reader) DetachedSignature() []byte {
	return r.sigRaw
}

// Count implements chain.Source.
func (r *Reader) Count() int {
	return r.chunkCount
}

// Open implements chain.Source, streaming segment i's ciphertext.
func (r *Reader) Open(i int) (io.ReadCloser, error) {
	if i < 0 || i >= r.chunkCount {
		return nil, layoutErr("segment index %d out of range [0,%d)", i, r.chunkCount)
	}
	return os.Open(filepath.Join(r.dir, ChunksDirName, chunkFileName(i)))
}
