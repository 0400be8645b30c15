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

// Package pat models the x86 page attribute table.
//
// The PAT is programmed through the IA32_PAT MSR with eight slots, each
// holding a memory type. A leaf page table entry selects a slot with three
// bits: PWT (bit 0 of the index), PCD (bit 1) and PAT (bit 2). The PAT bit
// lives at bit 7 in an L1 entry and at bit 12 in a huge entry.
package pat

import (
	"errors"
	"fmt"
	"strings"

	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pte"
)

// NumSlots is the number of PAT slots.
const NumSlots = 8

// ErrNoSlot is returned by FlagsFor when no slot holds the memory type.
var ErrNoSlot = errors.New("no PAT slot holds the memory type")

// Architectural IA32_PAT encodings.
const (
	encUC      = 0x00
	encWC      = 0x01
	encWT      = 0x04
	encWP      = 0x05
	encWB      = 0x06
	encUCMinus = 0x07
)

var encodings = [hostarch.NumMemoryTypes]uint8{
	hostarch.MemoryTypeWriteBack:     encWB,
	hostarch.MemoryTypeWriteThrough:  encWT,
	hostarch.MemoryTypeUncachedMinus: encUCMinus,
	hostarch.MemoryTypeUncached:      encUC,
	hostarch.MemoryTypeWriteCombine:  encWC,
	hostarch.MemoryTypeWriteProtect:  encWP,
}

// PAT is one layout of the page attribute table.
//
// PAT values are immutable and may be copied.
type PAT struct {
	slots [NumSlots]hostarch.MemoryType
}

// New returns a PAT with the given slot layout.
func New(slots [NumSlots]hostarch.MemoryType) (PAT, error) {
	for i, mt := range slots {
		if mt >= hostarch.NumMemoryTypes {
			return PAT{}, fmt.Errorf("slot %d: invalid memory type %v", i, mt)
		}
	}
	return PAT{slots: slots}, nil
}

// Default returns the layout the CPU uses after reset. It only holds WB, WT,
// UC- and UC.
func Default() PAT {
	return PAT{slots: [NumSlots]hostarch.MemoryType{
		hostarch.MemoryTypeWriteBack,
		hostarch.MemoryTypeWriteThrough,
		hostarch.MemoryTypeUncachedMinus,
		hostarch.MemoryTypeUncached,
		hostarch.MemoryTypeWriteBack,
		hostarch.MemoryTypeWriteThrough,
		hostarch.MemoryTypeUncachedMinus,
		hostarch.MemoryTypeUncached,
	}}
}

// Managed returns the layout programmed by the kernel. Every memory type has
// a slot, so FlagsFor never fails for it. Slots 0 through 3 keep their reset
// meaning for entries that only use PWT and PCD.
func Managed() PAT {
	return PAT{slots: [NumSlots]hostarch.MemoryType{
		hostarch.MemoryTypeWriteBack,
		hostarch.MemoryTypeWriteThrough,
		hostarch.MemoryTypeUncachedMinus,
		hostarch.MemoryTypeUncached,
		hostarch.MemoryTypeWriteCombine,
		hostarch.MemoryTypeWriteProtect,
		hostarch.MemoryTypeWriteBack,
		hostarch.MemoryTypeWriteBack,
	}}
}

// FromMSR decodes an IA32_PAT value.
func FromMSR(v uint64) (PAT, error) {
	var p PAT
	for i := 0; i < NumSlots; i++ {
		enc := uint8(v >> (8 * i))
		mt, ok := memoryTypeFor(enc)
		if !ok {
			return PAT{}, fmt.Errorf("slot %d: reserved encoding %#x", i, enc)
		}
		p.slots[i] = mt
	}
	return p, nil
}

func memoryTypeFor(enc uint8) (hostarch.MemoryType, bool) {
	for mt, e := range encodings {
		if e == enc {
			return hostarch.MemoryType(mt), true
		}
	}
	return 0, false
}

// MSR returns the IA32_PAT value that programs this layout.
func (p PAT) MSR() uint64 {
	var v uint64
	for i, mt := range p.slots {
		v |= uint64(encodings[mt]) << (8 * i)
	}
	return v
}

// Slot returns the memory type held by slot i.
func (p PAT) Slot(i int) hostarch.MemoryType {
	return p.slots[i]
}

// FlagsFor returns the PWT, PCD and PAT bits that select mt for a leaf
// entry mapping a frame of the given size.
func (p PAT) FlagsFor(mt hostarch.MemoryType, size hostarch.PageSize) (pte.Flags, error) {
	for i, slot := range p.slots {
		if slot == mt {
			return indexFlags(i, size), nil
		}
	}
	return 0, fmt.Errorf("%v: %w", mt, ErrNoSlot)
}

// Decode returns the memory type selected by the flags of a leaf entry.
func (p PAT) Decode(flags pte.Flags, size hostarch.PageSize) hostarch.MemoryType {
	i := 0
	if flags&pte.WriteThrough != 0 {
		i |= 1
	}
	if flags&pte.NoCache != 0 {
		i |= 2
	}
	if flags&patBit(size) != 0 {
		i |= 4
	}
	return p.slots[i]
}

// String implements fmt.Stringer.String.
func (p PAT) String() string {
	names := make([]string, NumSlots)
	for i, mt := range p.slots {
		names[i] = mt.ShortString()
	}
	return "[" + strings.Join(names, " ") + "]"
}

func indexFlags(i int, size hostarch.PageSize) pte.Flags {
	var f pte.Flags
	if i&1 != 0 {
		f |= pte.WriteThrough
	}
	if i&2 != 0 {
		f |= pte.NoCache
	}
	if i&4 != 0 {
		f |= patBit(size)
	}
	return f
}

func patBit(size hostarch.PageSize) pte.Flags {
	if size == hostarch.PageSize4KiB {
		return pte.PAT4KiB
	}
	return pte.PATHuge
}
