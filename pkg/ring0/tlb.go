// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ring0

import (
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/log"
	"gvisor.dev/l4paging/pkg/sync"
)

// LocalTLB invalidates translations on the executing CPU with invlpg.
//
// Other CPUs are not notified.
type LocalTLB struct{}

// Invalidate invalidates the translation of addr.
//
//go:nosplit
func (LocalTLB) Invalidate(addr hostarch.Addr) {
	invlpg(uintptr(addr))
}

// FlushAll reloads CR3, dropping every non-global translation.
//
//go:nosplit
func (LocalTLB) FlushAll() {
	writeCR3(readCR3())
}

// SoftTLB records invalidations instead of executing them. It stands in for
// LocalTLB when page tables are built in ordinary memory and never loaded
// into CR3.
//
// SoftTLB is safe for concurrent use.
type SoftTLB struct {
	mu sync.Mutex

	// invalidated holds every address passed to Invalidate since the last
	// Reset, in call order.
	invalidated []hostarch.Addr

	// flushes counts calls to FlushAll.
	flushes int
}

// Invalidate records addr.
func (t *SoftTLB) Invalidate(addr hostarch.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidated = append(t.invalidated, addr)
	if log.IsLogging(log.Debug) {
		log.Debugf("TLB: invalidate %v", addr)
	}
}

// FlushAll records a full flush.
func (t *SoftTLB) FlushAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushes++
}

// Invalidated returns a copy of the addresses invalidated so far.
func (t *SoftTLB) Invalidated() []hostarch.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]hostarch.Addr(nil), t.invalidated...)
}

// Flushes returns the number of full flushes.
func (t *SoftTLB) Flushes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushes
}

// Reset forgets all recorded invalidations.
func (t *SoftTLB) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidated = nil
	t.flushes = 0
}
