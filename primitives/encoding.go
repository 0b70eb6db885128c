/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package primitives

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrBadTaggedValue is returned when a "<alg>:<base64>" string fails to
// parse or its tag doesn't match what the caller expected.
var ErrBadTaggedValue = errors.New("primitives: malformed tagged value")

// EncodeTagged renders the "<alg>:<base64>" form used throughout the
// manifest for public keys, signatures, nonce prefixes and chain
// hashes.
func EncodeTagged(alg string, raw []byte) string {
	return alg + ":" + base64.StdEncoding.EncodeToString(raw)
}

// DecodeTagged parses a "<alg>:<base64>" string, returning the
// algorithm tag and the decoded bytes.
func DecodeTagged(s string) (alg string, raw []byte, err error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return "", nil, ErrBadTaggedValue
	}
	alg = s[:idx]
	raw, err = base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return "", nil, ErrBadTaggedValue
	}
	return alg, raw, nil
}

// DecodeTaggedExpect parses s and requires its algorithm tag to equal
// wantAlg.
func DecodeTaggedExpect(s, wantAlg string) ([]byte, error) {
	alg, raw, err := DecodeTagged(s)
	if err != nil {
		return nil, err
	}
	if alg != wantAlg {
		return nil, ErrBadTaggedValue
	}
	return raw, nil
}
