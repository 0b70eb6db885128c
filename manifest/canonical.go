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

// ToCanonicalBytes renders body's deterministic byte serialization:
// UTF-8 JSON, fixed key order (the struct's declared field order),
// no extraneous whitespace, no trailing newline. This is exactly the
// byte string that gets signed and that verification re-derives —
// any difference at all (reordered key, added whitespace, a changed
// number format) is a signature failure, not a soft warning.
func ToCanonicalBytes(body Body) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	// json.Encoder.Encode always appends a trailing '\n'; canonical
	// bytes must not carry one.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CanonicalBytes is a convenience wrapper returning the canonical
// bytes of m's signed body (fields 1-8), ignoring m.Signature
// entirely.
func (m Manifest) CanonicalBytes() ([]byte, error) {
	return ToCanonicalBytes(m.Body)
}
