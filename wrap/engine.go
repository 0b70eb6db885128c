/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package wrap implements the wrap engine: chunking a byte source into
// fixed-size segments, sealing each under a per-archive AEAD key,
// folding the continuity chain, and emitting a signed .trst archive.
package wrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/trustedge-labs/trustedge/archive"
	"github.com/trustedge-labs/trustedge/backend"
	"github.com/trustedge-labs/trustedge/chain"
	"github.com/trustedge-labs/trustedge/log"
	"github.com/trustedge-labs/trustedge/manifest"
	"github.com/trustedge-labs/trustedge/primitives"
)

// largeSegmentThreshold is the size above which a segment's seal+hash
// work is offloaded to the bounded worker pool rather than run inline
// — spec §5's "CPU-bound primitives... may be offloaded... when
// payloads exceed a threshold".
const largeSegmentThreshold = 256 * 1024

// windowSize bounds how many segments may be in flight to the worker
// pool at once, so a long capture never holds more than a handful of
// segments in memory regardless of source speed.
const windowSize = 4

// Config describes one wrap operation's scaffolding: everything known
// before the first byte is read.
type Config struct {
	Profile        string
	Device         manifest.Device
	Capture        manifest.Capture
	ChunkBytes     int
	ChunkDuration  float64
	AEADAlg        primitives.AEADAlg
	SigAlg      primitives.SigAlg
	KeyID       string
	Claims      map[string]interface{}
	// PrevArchiveHash links this archive to a preceding one in a
	// sequence, "b3:<base64>"; empty if this is the first.
	PrevArchiveHash string
}

// Engine wraps a byte source into a signed .trst archive using a
// single backend for both the per-segment AEAD key and the manifest
// signature.
type Engine struct {
	be   backend.Backend
	lgr  *log.Logger
	pool *offloadPool
}

// New constructs an Engine. lgr may be nil, in which case a discard
// logger is used.
func New(be backend.Backend, lgr *log.Logger) *Engine {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	return &Engine{be: be, lgr: lgr, pool: newOffloadPool(windowSize)}
}

// Wrap consumes src to EOF, sealing it into outDir as a new .trst
// archive, and returns the final signed manifest.
func (e *Engine) Wrap(ctx context.Context, src io.Reader, cfg Config, outDir string) (manifest.Manifest, error) {
	if cfg.ChunkBytes <= 0 {
		return manifest.Manifest{}, inputErr("chunk size must be positive, got %d", cfg.ChunkBytes)
	}
	nonceSize, err := primitives.NonceSize(cfg.AEADAlg)
	if err != nil {
		return manifest.Manifest{}, err
	}

	segKey, err := primitives.RandomSecret(32)
	if err != nil {
		return manifest.Manifest{}, err
	}
	defer segKey.Release()
	keyBytes, err := segKey.Bytes()
	if err != nil {
		return manifest.Manifest{}, err
	}

	prefixLen := nonceSize - 8
	if prefixLen < 0 {
		prefixLen = 0
	}
	noncePrefix, err := primitives.RandomSecret(prefixLen)
	if err != nil {
		return manifest.Manifest{}, err
	}
	defer noncePrefix.Release()
	prefixBytes, err := noncePrefix.Bytes()
	if err != nil {
		return manifest.Manifest{}, err
	}

	header := manifest.Header{
		TrstVersion: manifest.TrstVersion,
		Profile:     cfg.Profile,
		Device:      cfg.Device,
		Capture:     cfg.Capture,
		Chunk: manifest.Chunk{
			SizeBytes:       cfg.ChunkBytes,
			DurationSeconds: cfg.ChunkDuration,
			AEADAlg:         string(cfg.AEADAlg),
			NoncePrefix:     primitives.EncodeTagged("nonce", prefixBytes),
		},
	}
	headerBytes, err := manifest.ToCanonicalHeaderBytes(header)
	if err != nil {
		return manifest.Manifest{}, err
	}

	// Wrap the ephemeral segment key under the device's own key before
	// it's ever used for sealing, so the archive carries a recoverable
	// copy without core ever persisting the raw key anywhere itself —
	// spec §4.5's "stored encrypted under the device's long-term key".
	// The wrap nonce must be fresh per archive since cfg.KeyID's
	// backing secret is reused across archives as the wrap KEK; the
	// canonical header binds the wrapped key to this specific archive.
	wrapNonce, err := primitives.RandomBytes(nonceSize)
	if err != nil {
		return manifest.Manifest{}, err
	}
	wrappedKey, err := e.be.AEADSeal(ctx, cfg.KeyID, cfg.AEADAlg, wrapNonce, headerBytes, keyBytes)
	if err != nil {
		return manifest.Manifest{}, err
	}
	if cfg.Claims == nil {
		cfg.Claims = make(map[string]interface{})
	}
	cfg.Claims["segment_key"] = primitives.EncodeTagged(string(cfg.AEADAlg), append(wrapNonce, wrappedKey...))

	w, err := archive.CreateWriter(outDir)
	if err != nil {
		return manifest.Manifest{}, err
	}
	var finalized bool
	defer func() {
		if !finalized {
			w.Discard()
		}
	}()

	h := chain.Genesis()
	count := 0
	pending := make([]<-chan sealOutcome, 0, windowSize)
	pendingIdx := 0

	flush := func() error {
		for _, ch := range pending {
			out := <-ch
			if out.err != nil {
				return out.err
			}
			if err := w.WriteChunk(out.index, out.ciphertext); err != nil {
				return err
			}
			h = chain.Next(h, out.segHash)
			count++
		}
		pending = pending[:0]
		return nil
	}

	buf := make([]byte, cfg.ChunkBytes)
	for {
		select {
		case <-ctx.Done():
			return manifest.Manifest{}, ctx.Err()
		default:
		}

		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			plaintext := make([]byte, n)
			copy(plaintext, buf[:n])
			ch := e.sealAsync(ctx, pendingIdx, plaintext, keyBytes, prefixBytes, headerBytes, cfg.AEADAlg, nonceSize)
			pending = append(pending, ch)
			pendingIdx++
			if len(pending) >= windowSize {
				if err := flush(); err != nil {
					return manifest.Manifest{}, err
				}
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return manifest.Manifest{}, readErr
		}
	}
	if err := flush(); err != nil {
		return manifest.Manifest{}, err
	}

	body := manifest.Body{
		TrstVersion: header.TrstVersion,
		Profile:     header.Profile,
		Device:      header.Device,
		Capture:     header.Capture,
		Chunk:       header.Chunk,
		Segments: manifest.Segments{
			Count:     count,
			ChainRoot: primitives.EncodeTagged(primitives.B3Tag, chain.Genesis()[:]),
			ChainTip:  primitives.EncodeTagged(primitives.B3Tag, h[:]),
		},
		Claims: cfg.Claims,
	}
	if cfg.PrevArchiveHash != `` {
		p := cfg.PrevArchiveHash
		body.PrevArchiveHash = &p
	}

	canonical, err := manifest.ToCanonicalBytes(body)
	if err != nil {
		return manifest.Manifest{}, err
	}
	sigRaw, err := e.be.Sign(ctx, cfg.KeyID, canonical)
	if err != nil {
		return manifest.Manifest{}, err
	}

	m := manifest.Manifest{Body: body, Signature: primitives.EncodeTagged(string(cfg.SigAlg), sigRaw)}
	manifestJSON, err := marshalManifest(m)
	if err != nil {
		return manifest.Manifest{}, err
	}
	if err := w.WriteManifest(manifestJSON, sigRaw); err != nil {
		return manifest.Manifest{}, err
	}
	if err := w.Finalize(); err != nil {
		return manifest.Manifest{}, err
	}
	finalized = true

	e.lgr.Info("archive sealed", log.KV("segments", count), log.KV("chunk_bytes", cfg.ChunkBytes))
	return m, nil
}

type sealOutcome struct {
	index      int
	ciphertext []byte
	segHash    [32]byte
	err        error
}

// sealAsync seals one segment. Segments at or below
// largeSegmentThreshold are sealed inline (the channel is pre-filled)
// since the goroutine/channel overhead would dwarf the work; larger
// segments run on their own goroutine so multiple big segments in a
// window overlap their CPU-bound work.
func (e *Engine) sealAsync(ctx context.Context, index int, plaintext, key, prefix, headerBytes []byte, alg primitives.AEADAlg, nonceSize int) <-chan sealOutcome {
	ch := make(chan sealOutcome, 1)
	seal := func() sealOutcome {
		aad := buildAAD(headerBytes, index)
		nonce, err := primitives.BuildNonce(prefix, uint64(index), nonceSize)
		if err != nil {
			return sealOutcome{index: index, err: err}
		}
		ct, err := primitives.Seal(alg, key, nonce, aad, plaintext)
		if err != nil {
			return sealOutcome{index: index, err: err}
		}
		return sealOutcome{index: index, ciphertext: ct, segHash: chain.SegmentHash(ct)}
	}
	if len(plaintext) <= largeSegmentThreshold {
		ch <- seal()
		return ch
	}
	if err := e.pool.run(ctx, seal, ch); err != nil {
		ch <- sealOutcome{index: index, err: err}
	}
	return ch
}

// buildAAD forms canonical_header_bytes || u64_be(i), spec §4.5 step 4.
func buildAAD(headerBytes []byte, index int) []byte {
	aad := make([]byte, len(headerBytes)+8)
	copy(aad, headerBytes)
	idx := uint64(index)
	for i := 0; i < 8; i++ {
		aad[len(headerBytes)+7-i] = byte(idx >> (8 * i))
	}
	return aad
}

// marshalManifest renders the full on-disk manifest document (fields
// 1-9, signature included), used only for the file actually written
// to disk — never for what gets signed, which is ToCanonicalBytes(Body).
func marshalManifest(m manifest.Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
