/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package backend

import (
	"sync"

	"github.com/trustedge-labs/trustedge/primitives"
)

// registry is the process-wide backend set, per spec §9's "global
// state: the backend registry is the only process-wide element".
// Backends are added through Register; the software backend does not
// register itself in init() and is registered by the caller at
// startup. The registry itself never imports a concrete backend
// package. The mutex only ever guards the
// in-memory slice append/read — it is never held across a backend
// call, which may suspend (USB, PKCS#11, network).
var (
	registryMu sync.RWMutex
	registry   []Backend
)

// Register adds b to the process-wide backend registry. Intended to
// be called from a backend package's init(); safe to call later too,
// but the set is expected to stabilize before any real work starts.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, b)
}

// All returns a snapshot of the currently registered backends.
func All() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Backend, len(registry))
	copy(out, registry)
	return out
}

// Get returns the registered backend named name, if any.
func Get(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, b := range registry {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// ForSigAlg returns the first registered backend whose capabilities
// include alg. Dispatch policy per spec §4.7: a capability match, or
// NoCapableBackend — never a silent substitution.
func ForSigAlg(alg primitives.SigAlg) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, b := range registry {
		if b.Capabilities().hasSigAlg(alg) {
			return b, nil
		}
	}
	return nil, noCapableBackend("sign:" + string(alg))
}

// ForAEADAlg returns the first registered backend whose capabilities
// include alg.
func ForAEADAlg(alg primitives.AEADAlg) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, b := range registry {
		if b.Capabilities().hasAEADAlg(alg) {
			return b, nil
		}
	}
	return nil, noCapableBackend("aead:" + string(alg))
}
