/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package archive

import (
	"fmt"
	"regexp"
)

const (
	ManifestFileName  = "manifest.json"
	SignatureDirName  = "signatures"
	SignatureFileName = "manifest.sig"
	ChunksDirName     = "chunks"
)

var chunkNamePattern = regexp.MustCompile(`^[0-9]{5}\.bin$`)

// chunkFileName renders the five-digit zero-padded chunk filename for
// segment index i. Verifiers MUST reject any deviation from this
// exact width.
func chunkFileName(i int) string {
	return fmt.Sprintf("%05d.bin", i)
}

// parseChunkIndex returns the segment index encoded by name, or false
// if name doesn't match the required five-digit ".bin" form exactly.
func parseChunkIndex(name string) (int, bool) {
	if !chunkNamePattern.MatchString(name) {
		return 0, false
	}
	var idx int
	for _, c := range name[:5] {
		idx = idx*10 + int(c-'0')
	}
	return idx, true
}
