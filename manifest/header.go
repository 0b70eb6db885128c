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
)

// Header holds fields 1-5 of the manifest — everything known before
// the chain is complete. The wrap engine canonicalizes this on every
// segment to build that segment's AAD (spec §4.5 step 4), long before
// Segments, Claims or the signature exist.
type Header struct {
	TrstVersion int     `json:"trst_version"`
	Profile     string  `json:"profile"`
	Device      Device  `json:"device"`
	Capture     Capture `json:"capture"`
	Chunk       Chunk   `json:"chunk"`
}

// HeaderOf extracts the header fields from a manifest body.
func HeaderOf(b Body) Header {
	return Header{
		TrstVersion: b.TrstVersion,
		Profile:     b.Profile,
		Device:      b.Device,
		Capture:     b.Capture,
		Chunk:       b.Chunk,
	}
}

// ToCanonicalHeaderBytes renders h the same way ToCanonicalBytes
// renders a full Body: fixed key order, no extraneous whitespace, no
// trailing newline.
func ToCanonicalHeaderBytes(h Header) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
