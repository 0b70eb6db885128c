/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package verify

import "fmt"

// SignatureInvalidError reports that the manifest's signature field
// did not verify against the expected public key — spec §4.6 step 1's
// SignatureInvalid failure.
type SignatureInvalidError struct {
	Reason string
}

func (e *SignatureInvalidError) Error() string {
	return fmt.Sprintf("verify: signature invalid: %s", e.Reason)
}

func sigInvalid(format string, args ...interface{}) error {
	return &SignatureInvalidError{Reason: fmt.Sprintf(format, args...)}
}
