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

package hostarch

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrNotAligned is returned when constructing a Frame or Page whose start
// address is not a multiple of its size.
var ErrNotAligned = errors.New("address is not aligned to the page size")

// ErrNotCanonical is returned when constructing a Page whose start address
// is not canonical.
var ErrNotCanonical = errors.New("address is not canonical")

// ErrPhysAddrTooWide is returned when constructing a Frame that does not lie
// below 1<<PhysAddrBits.
var ErrPhysAddrTooWide = errors.New("physical address is wider than 52 bits")

// Frame is a naturally aligned region of physical memory.
//
// Frames are values. Exclusive ownership of a frame is expressed separately,
// see pagetables.Owned4KiBFrame.
type Frame struct {
	start PhysAddr
	size  PageSize
}

// NewFrame returns the frame of the given size starting at start.
func NewFrame(start PhysAddr, size PageSize) (Frame, error) {
	if !start.IsAligned(size.Bytes()) {
		return Frame{}, fmt.Errorf("frame at %v with size %v: %w", start, size, ErrNotAligned)
	}
	if !start.IsValid() {
		return Frame{}, fmt.Errorf("frame at %v: %w", start, ErrPhysAddrTooWide)
	}
	return Frame{start: start, size: size}, nil
}

// MustNewFrame is NewFrame, but panics on error.
func MustNewFrame(start PhysAddr, size PageSize) Frame {
	f, err := NewFrame(start, size)
	if err != nil {
		panic(err)
	}
	return f
}

// Start returns the first physical address of the frame.
func (f Frame) Start() PhysAddr {
	return f.start
}

// Size returns the size of the frame.
func (f Frame) Size() PageSize {
	return f.size
}

// End returns the first address after the frame. It wraps to zero for the
// last frame of the address space.
func (f Frame) End() PhysAddr {
	return f.start + PhysAddr(f.size.Bytes())
}

// Offset returns the count'th frame of the same size after f. ok is false if
// the resulting address does not fit in 64 bits or is not a valid physical
// address.
func (f Frame) Offset(count uint64) (Frame, bool) {
	start, ok := offset(uint64(f.start), count, f.size)
	if !ok || !PhysAddr(start).IsValid() {
		return Frame{}, false
	}
	// Both terms are multiples of the size, so alignment holds.
	return Frame{start: PhysAddr(start), size: f.size}, true
}

// String implements fmt.Stringer.String.
func (f Frame) String() string {
	return fmt.Sprintf("Frame{%v, %v}", f.start, f.size)
}

// Page is a naturally aligned region of virtual memory.
type Page struct {
	start Addr
	size  PageSize
}

// NewPage returns the page of the given size starting at start.
func NewPage(start Addr, size PageSize) (Page, error) {
	if !start.IsAligned(size.Bytes()) {
		return Page{}, fmt.Errorf("page at %v with size %v: %w", start, size, ErrNotAligned)
	}
	if !start.IsCanonical() {
		return Page{}, fmt.Errorf("page at %v: %w", start, ErrNotCanonical)
	}
	return Page{start: start, size: size}, nil
}

// MustNewPage is NewPage, but panics on error.
func MustNewPage(start Addr, size PageSize) Page {
	p, err := NewPage(start, size)
	if err != nil {
		panic(err)
	}
	return p
}

// Start returns the first virtual address of the page.
func (p Page) Start() Addr {
	return p.start
}

// Size returns the size of the page.
func (p Page) Size() PageSize {
	return p.size
}

// Offset returns the count'th page of the same size after p. ok is false if
// the resulting address does not fit in 64 bits or is not canonical.
func (p Page) Offset(count uint64) (Page, bool) {
	start, ok := offset(uint64(p.start), count, p.size)
	if !ok || !Addr(start).IsCanonical() {
		return Page{}, false
	}
	return Page{start: Addr(start), size: p.size}, true
}

// Contains returns true if addr lies within the page.
func (p Page) Contains(addr Addr) bool {
	return addr >= p.start && uint64(addr-p.start) < p.size.Bytes()
}

// Compare orders pages by start address, then by size. It returns -1, 0 or
// +1.
func (p Page) Compare(other Page) int {
	switch {
	case p.start < other.start:
		return -1
	case p.start > other.start:
		return 1
	case p.size < other.size:
		return -1
	case p.size > other.size:
		return 1
	default:
		return 0
	}
}

// Less returns true if p sorts before other.
func (p Page) Less(other Page) bool {
	return p.Compare(other) < 0
}

// String implements fmt.Stringer.String.
func (p Page) String() string {
	return fmt.Sprintf("Page{%v, %v}", p.start, p.size)
}

// offset computes start + count*size.Bytes(), reporting overflow.
func offset(start, count uint64, size PageSize) (uint64, bool) {
	hi, delta := bits.Mul64(count, size.Bytes())
	if hi != 0 {
		return 0, false
	}
	sum, carry := bits.Add64(start, delta, 0)
	if carry != 0 {
		return 0, false
	}
	return sum, true
}
