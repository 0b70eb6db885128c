/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package archive implements the .trst on-disk directory layout: a
// manifest, a detached signature, and contiguous zero-padded chunk
// files, written atomically (temp directory, then rename) and read
// back streaming — never holding every segment in memory at once.
package archive

import "fmt"

// LayoutError reports ArchiveLayoutInvalid conditions: a missing
// required file, an unexpected extra file, or a malformed chunk
// filename — anything that isn't a continuity (chain) failure.
type LayoutError struct {
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("archive: invalid layout: %s", e.Reason)
}

func layoutErr(format string, args ...interface{}) error {
	return &LayoutError{Reason: fmt.Sprintf(format, args...)}
}
