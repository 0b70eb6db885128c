/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dchest/safefile"
	"github.com/google/uuid"
)

// Writer builds a .trst archive in an invisible temporary sibling
// directory and only makes it visible, atomically, on Finalize —
// spec §4.4's "write to a temporary sibling then rename" discipline.
// A Writer is single-writer per archive: it is not safe to call its
// methods from more than one goroutine.
type Writer struct {
	finalDir string
	tempDir  string
	count    int
	done     bool
}

// CreateWriter begins building a new archive at finalDir, which must
// not already exist. The returned Writer's on-disk footprint is
// entirely invisible (a dot-prefixed sibling directory) until
// Finalize succeeds.
func CreateWriter(finalDir string) (*Writer, error) {
	if _, err := os.Stat(finalDir); err == nil {
		return nil, layoutErr("archive already exists: %s", finalDir)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	parent := filepath.Dir(finalDir)
	tempDir := filepath.Join(parent, fmt.Sprintf(".tmp-%s-%s", filepath.Base(finalDir), uuid.NewString()))

	if err := os.MkdirAll(filepath.Join(tempDir, ChunksDirName), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(tempDir, SignatureDirName), 0o755); err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	return &Writer{finalDir: finalDir, tempDir: tempDir}, nil
}

// WriteChunk persists segment i's ciphertext. Chunks must be written
// in strictly increasing index order starting at 0 — the chain
// requires it, and WriteChunk enforces it rather than trusting the
// caller.
func (w *Writer) WriteChunk(i int, ciphertext []byte) error {
	if w.done {
		return layoutErr("writer already finalized or discarded")
	}
	if i != w.count {
		return layoutErr("chunks must be written in order: expected index %d, got %d", w.count, i)
	}
	path := filepath.Join(w.tempDir, ChunksDirName, chunkFileName(i))
	if err := os.WriteFile(path, ciphertext, 0o644); err != nil {
		return err
	}
	w.count++
	return nil
}

// WriteManifest persists the canonical manifest document and its
// detached signature. manifestJSON is the full on-disk manifest
// (fields 1-9); sigRaw is the raw signature bytes, stored
// unencoded exactly as spec §6 requires.
func (w *Writer) WriteManifest(manifestJSON, sigRaw []byte) error {
	if w.done {
		return layoutErr("writer already finalized or discarded")
	}
	if err := safeWrite(filepath.Join(w.tempDir, ManifestFileName), manifestJSON); err != nil {
		return err
	}
	return safeWrite(filepath.Join(w.tempDir, SignatureDirName, SignatureFileName), sigRaw)
}

func safeWrite(path string, data []byte) error {
	f, err := safefile.Create(path, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Commit(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	return nil
}

// Finalize makes the archive visible by renaming the temp directory
// into place. The rename is the single atomicity boundary: readers
// either see the whole archive or nothing of it.
func (w *Writer) Finalize() error {
	if w.done {
		return layoutErr("writer already finalized or discarded")
	}
	w.done = true
	if err := os.Rename(w.tempDir, w.finalDir); err != nil {
		os.RemoveAll(w.tempDir)
		return err
	}
	return nil
}

// Discard removes the temporary directory without publishing it —
// the cancellation path of spec §5: any suspension-point interruption
// leaves nothing visible.
func (w *Writer) Discard() error {
	if w.done {
		return nil
	}
	w.done = true
	return os.RemoveAll(w.tempDir)
}
