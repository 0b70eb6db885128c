/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

import "fmt"

// AuthFailedError reports a handshake signature that did not verify —
// spec's AuthFailed: the connection is aborted and no key is
// retained.
type AuthFailedError struct {
	Reason string
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("session: auth failed: %s", e.Reason)
}

func authFailed(format string, args ...interface{}) error {
	return &AuthFailedError{Reason: fmt.Sprintf(format, args...)}
}

// TimeoutError reports a handshake phase exceeding its deadline —
// spec's Timeout{Phase}.
type TimeoutError struct {
	Phase string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("session: timeout: %s", e.Phase)
}

func timeoutErr(phase string) error {
	return &TimeoutError{Phase: phase}
}
