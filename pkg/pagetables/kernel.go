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
	"fmt"

	"gvisor.dev/l4paging/pkg/log"
)

// PopulateKernelHalf gives every higher-half L4 entry of the kernel table an
// L3 table, allocated from alloc.
//
// This is the only way L3 tables are created under a Kernel table. It must
// run before the first ShareKernelHalf: entries added later would not reach
// the User tables that already copied the higher half.
func PopulateKernelHalf(t *ManagedL4PageTable, alloc Allocator) error {
	if t.typ != Kernel {
		panic(fmt.Sprintf("PopulateKernelHalf on %v", t))
	}
	root := t.L4()
	first, end := Kernel.ManagedRange()
	created := 0
	for i := first; i < end; i++ {
		e := root.Entry(i)
		if !e.IsEmpty() {
			continue
		}
		frame, ok := alloc.AllocateFrame()
		if !ok {
			return fmt.Errorf("kernel L4 index %d: %w", i, ErrFrameAllocationFailed)
		}
		e.setPageTable(frame)
		created++
	}
	log.Infof("pagetables: populated %d kernel L3 tables under %v", created, t)
	return nil
}

// ShareKernelHalf copies the higher-half L4 entries of kernel into t, so the
// process sees the kernel mappings through the same L3 tables.
func (t *ManagedL4PageTable) ShareKernelHalf(kernel *ManagedL4PageTable) {
	if t.typ != User || kernel.typ != Kernel {
		panic(fmt.Sprintf("sharing %v into %v", kernel, t))
	}
	src, dst := kernel.rootTable(), t.rootTable()
	first, end := Kernel.ManagedRange()
	for i := first; i < end; i++ {
		dst[i].Set(src[i].Address(), src[i].Flags())
	}
}
