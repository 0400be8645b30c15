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

// Package pte defines the x86-64 page table entry format.
//
// The layout is fixed by the architecture: a table is 512 eight-byte
// entries, and each entry holds a physical address plus the flag bits below.
package pte

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Flags are the non-address bits of an entry.
type Flags uint64

// Bits in page table entries.
const (
	Present        Flags = 1 << 0
	Writable       Flags = 1 << 1
	UserAccessible Flags = 1 << 2
	WriteThrough   Flags = 1 << 3
	NoCache        Flags = 1 << 4
	Accessed       Flags = 1 << 5
	Dirty          Flags = 1 << 6
	HugePage       Flags = 1 << 7
	Global         Flags = 1 << 8
	NoExecute      Flags = 1 << 63

	// PAT4KiB selects the high PAT index bit in an L1 entry. It shares its
	// position with HugePage.
	PAT4KiB Flags = 1 << 7

	// PATHuge selects the high PAT index bit in an L2 or L3 entry that maps
	// a frame.
	PATHuge Flags = 1 << 12
)

const (
	// EntriesPerTable is the number of entries in a table at every level.
	EntriesPerTable = 512

	// addressMask covers bits 12 through 51.
	addressMask = 0x000f_ffff_ffff_f000
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{Present, "P"},
	{Writable, "W"},
	{UserAccessible, "U"},
	{WriteThrough, "PWT"},
	{NoCache, "PCD"},
	{Accessed, "A"},
	{Dirty, "D"},
	{HugePage, "PS"},
	{Global, "G"},
	{PATHuge, "PAT"},
	{NoExecute, "NX"},
}

// Contains returns true if all of other is set in f.
func (f Flags) Contains(other Flags) bool {
	return f&other == other
}

// String implements fmt.Stringer.String. Bit 7 is always printed as PS; its
// meaning depends on the level of the entry.
func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var names []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(names, "|")
}

// Entry is a page table entry.
//
// Entries are read and written atomically since the MMU may consult them
// concurrently.
type Entry uint64

// Table is one page table: L4, L3, L2 or L1.
type Table [EntriesPerTable]Entry

// Load atomically reads the raw entry.
//
//go:nosplit
func (e *Entry) Load() uint64 {
	return atomic.LoadUint64((*uint64)(e))
}

// IsUnused returns true iff the entry is zero.
//
//go:nosplit
func (e *Entry) IsUnused() bool {
	return e.Load() == 0
}

// Valid returns true iff the present bit is set.
//
//go:nosplit
func (e *Entry) Valid() bool {
	return Flags(e.Load())&Present != 0
}

// IsHuge returns true iff the huge page bit is set. This is only meaningful
// for L2 and L3 entries.
//
//go:nosplit
func (e *Entry) IsHuge() bool {
	return Flags(e.Load())&HugePage != 0
}

// Address returns the physical address bits of the entry. For an entry that
// maps a huge frame the caller must additionally clear the low bits, since
// bit 12 is PATHuge there.
//
//go:nosplit
func (e *Entry) Address() uint64 {
	return e.Load() & addressMask
}

// Flags returns the non-address bits of the entry.
//
//go:nosplit
func (e *Entry) Flags() Flags {
	return Flags(e.Load() &^ addressMask)
}

// LeafFlags returns the non-address bits of an entry mapping a frame of
// 1<<shift bytes. Unlike Flags, it includes PATHuge for huge frames.
//
//go:nosplit
func (e *Entry) LeafFlags(shift uint) Flags {
	return Flags(e.Load() &^ AddressMask(shift))
}

// Set atomically stores addr and flags. addr must be 4 KiB aligned and fit in
// 52 bits.
func (e *Entry) Set(addr uint64, flags Flags) {
	if addr&^addressMask != 0 {
		panic(fmt.Sprintf("address %#x does not fit in a page table entry", addr))
	}
	atomic.StoreUint64((*uint64)(e), addr|uint64(flags))
}

// SetFlags atomically replaces the flag bits, keeping the bits selected by
// addrMask.
//
//go:nosplit
func (e *Entry) SetFlags(addrMask uint64, flags Flags) {
	v := e.Load() & addrMask
	atomic.StoreUint64((*uint64)(e), v|uint64(flags))
}

// Clear clears the entry.
//
//go:nosplit
func (e *Entry) Clear() {
	atomic.StoreUint64((*uint64)(e), 0)
}

// String implements fmt.Stringer.String.
func (e *Entry) String() string {
	return fmt.Sprintf("%#x[%v]", e.Address(), e.Flags())
}

// AddressMask returns the mask of the address bits of an entry mapping a
// frame of 1<<shift bytes.
func AddressMask(shift uint) uint64 {
	return addressMask &^ (uint64(1)<<shift - 1)
}
