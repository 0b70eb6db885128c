/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package manifest defines the .trst archive's canonical manifest: a
// fixed-field-order JSON document describing device, capture, chunk
// and chain metadata, with a detached signature over every field but
// itself.
package manifest

import "time"

// TrstVersion is the current manifest schema version.
const TrstVersion = 1

// Device describes the capturing device and its long-term signing
// identity.
type Device struct {
	ID              string `json:"id"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	// PublicKey is "<alg>:<base64>", e.g. "ed25519:...".
	PublicKey string `json:"public_key"`
}

// Capture describes the capture session's timing and format.
type Capture struct {
	StartedAt             time.Time `json:"started_at"`
	EndedAt               time.Time `json:"ended_at"`
	TimezoneOffsetMinutes int       `json:"timezone_offset_minutes"`
	Resolution            string    `json:"resolution"`
	Codec                 string    `json:"codec"`
	FPS                   float64   `json:"fps"`
}

// Chunk describes the fixed chunking and sealing parameters applied
// uniformly to every segment in the archive.
type Chunk struct {
	SizeBytes        int     `json:"size_bytes"`
	DurationSeconds  float64 `json:"duration_seconds"`
	AEADAlg          string  `json:"aead_alg"`
	// NoncePrefix is "<alg>:<base64>", a 24-byte prefix when
	// AEADAlg is xchacha20poly1305.
	NoncePrefix string `json:"nonce_prefix"`
}

// Segments summarizes the continuity chain.
type Segments struct {
	Count int `json:"count"`
	// ChainRoot and ChainTip are "b3:<base64>".
	ChainRoot string `json:"chain_root"`
	ChainTip  string `json:"chain_tip"`
}

// Body holds fields 1-8 of the manifest — everything the signature
// covers. It is marshaled on its own to produce the canonical bytes
// that are signed and verified; spliced into Manifest alongside
// Signature to produce the on-disk document.
type Body struct {
	TrstVersion int     `json:"trst_version"`
	Profile     string  `json:"profile"`
	Device      Device  `json:"device"`
	Capture     Capture `json:"capture"`
	Chunk       Chunk   `json:"chunk"`
	Segments    Segments `json:"segments"`
	// Claims is optional structured metadata (location, source hints,
	// ...). Serialized with its keys in the order the JSON library
	// produces for map[string]interface{}, which is deterministic
	// (alphabetical) so canonicalization stays idempotent.
	Claims map[string]interface{} `json:"claims,omitempty"`
	// PrevArchiveHash links to a preceding archive, "b3:<base64>".
	// Null/absent if this is the first archive in a sequence.
	PrevArchiveHash *string `json:"prev_archive_hash,omitempty"`
}

// Manifest is the full on-disk document: Body plus the detached
// signature over Body's canonical bytes.
type Manifest struct {
	Body
	// Signature is "<alg>:<base64>" over ToCanonicalBytes(Body).
	// Excluded from the bytes it signs.
	Signature string `json:"signature"`
}
