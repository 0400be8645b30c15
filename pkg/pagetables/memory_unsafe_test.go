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

package pagetables

import (
	"runtime"
	"testing"
	"unsafe"

	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pat"
	"gvisor.dev/l4paging/pkg/ring0"
)

// testMemory is a page aligned buffer standing in for physical memory.
// Physical address 0 is the first page of the buffer and is never handed
// out.
type testMemory struct {
	buf    []byte
	base   uintptr
	next   int
	frames int
}

func newTestMemory(t *testing.T, frames int) *testMemory {
	buf := make([]byte, (frames+1)*hostarch.PageSizeBytes)
	// Tables are only reached through base, which the GC does not see.
	t.Cleanup(func() { runtime.KeepAlive(buf) })
	start := uintptr(unsafe.Pointer(&buf[0]))
	base := (start + hostarch.PageSizeBytes - 1) &^ (hostarch.PageSizeBytes - 1)
	return &testMemory{
		buf:    buf,
		base:   base,
		next:   1,
		frames: frames,
	}
}

func (m *testMemory) offset() VirtualOffset {
	return UnsafeVirtualOffset(uint64(m.base))
}

// AllocateFrame implements Allocator.AllocateFrame.
func (m *testMemory) AllocateFrame() (Owned4KiBFrame, bool) {
	if m.next >= m.frames {
		return Owned4KiBFrame{}, false
	}
	f := hostarch.MustNewFrame(hostarch.PhysAddr(m.next*hostarch.PageSizeBytes), hostarch.PageSize4KiB)
	m.next++
	return UnsafeOwned4KiBFrame(f), true
}

// allocated returns the number of frames handed out.
func (m *testMemory) allocated() int {
	return m.next - 1
}

type testTables struct {
	mem   *testMemory
	tlb   *ring0.SoftTLB
	table *ManagedL4PageTable
}

// newTestTables returns an empty table of type typ on a CPU with features.
// Kernel tables are populated.
func newTestTables(t *testing.T, typ L4Type, features ...cpuid.Feature) *testTables {
	t.Helper()
	mem := newTestMemory(t, 512)
	s := make(cpuid.Static)
	for _, f := range features {
		s.Add(f)
	}
	fs := s.ToFeatureSet()
	tlb := &ring0.SoftTLB{}
	config := NewConfig(pat.Managed(), mem.offset()).WithFeatures(&fs).WithTLB(tlb)

	root, ok := mem.AllocateFrame()
	if !ok {
		t.Fatalf("no frame for the root table")
	}
	tt := &testTables{mem: mem, tlb: tlb}
	switch typ {
	case Kernel:
		tt.table = NewKernel(root, config)
		if err := PopulateKernelHalf(tt.table, mem); err != nil {
			t.Fatalf("PopulateKernelHalf failed: %v", err)
		}
	case User:
		tt.table = NewUser(root, config)
	}
	return tt
}
