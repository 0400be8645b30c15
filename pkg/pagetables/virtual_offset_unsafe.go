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
	"unsafe"

	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pte"
)

// VirtualOffset is the distance between a physical address and the virtual
// address at which that physical memory is mapped.
type VirtualOffset struct {
	offset uint64
}

// UnsafeVirtualOffset returns a VirtualOffset of offset.
//
// The caller asserts that all physical memory is mapped contiguously at
// offset for the lifetime of the process. Every table access dereferences
// physical+offset without further checks.
func UnsafeVirtualOffset(offset uint64) VirtualOffset {
	return VirtualOffset{offset: offset}
}

// Offset returns the raw offset.
func (v VirtualOffset) Offset() uint64 {
	return v.offset
}

// ToVirtual returns the virtual address at which p can be accessed.
//
//go:nosplit
func (v VirtualOffset) ToVirtual(p hostarch.PhysAddr) hostarch.Addr {
	return hostarch.Addr(uint64(p) + v.offset)
}

// table returns the table held in the frame at p.
//
//go:nosplit
func (v VirtualOffset) table(p hostarch.PhysAddr) *pte.Table {
	return (*pte.Table)(unsafe.Pointer(uintptr(v.ToVirtual(p))))
}

// zeroTable clears the 4 KiB frame at p.
func (v VirtualOffset) zeroTable(p hostarch.PhysAddr) *pte.Table {
	t := v.table(p)
	*t = pte.Table{}
	return t
}
