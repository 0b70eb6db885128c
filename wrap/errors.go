/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wrap

import "fmt"

// InputError reports a problem with wrap's configuration or input
// stream, as opposed to a failure inside a collaborator package
// (archive, backend, primitives), which is propagated unwrapped.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("wrap: %s", e.Reason)
}

func inputErr(format string, args ...interface{}) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}
