/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package manifest

import (
	"bytes"
	"encoding/json"

	"github.com/trustedge-labs/trustedge/primitives"
)

// Parse decodes a manifest.json document and validates that every
// required field is present and well-formed. It does not verify the
// signature — that is the verify engine's job, against a caller- or
// device-supplied public key.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, malformed("<root>", err.Error())
	}
	if err := Validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks structural completeness of m per spec §3/§4.2.
func Validate(m Manifest) error {
	if m.TrstVersion != TrstVersion {
		return malformed("trst_version", "unsupported version")
	}
	if m.Profile == "" {
		return malformed("profile", "must not be empty")
	}
	if m.Device.ID == "" {
		return malformed("device.id", "must not be empty")
	}
	if m.Device.PublicKey == "" {
		return malformed("device.public_key", "must not be empty")
	}
	if _, _, err := primitives.DecodeTagged(m.Device.PublicKey); err != nil {
		return malformed("device.public_key", "not a valid tagged value")
	}
	if m.Capture.StartedAt.IsZero() {
		return malformed("capture.started_at", "must be set")
	}
	if m.Chunk.SizeBytes <= 0 {
		return malformed("chunk.size_bytes", "must be positive")
	}
	if m.Chunk.AEADAlg == "" {
		return malformed("chunk.aead_alg", "must not be empty")
	}
	if m.Chunk.NoncePrefix == "" {
		return malformed("chunk.nonce_prefix", "must not be empty")
	}
	if _, _, err := primitives.DecodeTagged(m.Chunk.NoncePrefix); err != nil {
		return malformed("chunk.nonce_prefix", "not a valid tagged value")
	}
	if m.Segments.ChainRoot == "" || m.Segments.ChainTip == "" {
		return malformed("segments", "chain_root and chain_tip must be set")
	}
	if m.Segments.Count < 0 {
		return malformed("segments.count", "must not be negative")
	}
	if m.Signature == "" {
		return malformed("signature", "must not be empty")
	}
	if _, _, err := primitives.DecodeTagged(m.Signature); err != nil {
		return malformed("signature", "not a valid tagged value")
	}
	return nil
}
