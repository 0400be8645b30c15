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

import "fmt"

// Addr is a virtual address.
type Addr uint64

// PhysAddr is a physical address.
type PhysAddr uint64

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#x", uint64(v))
}

// String implements fmt.Stringer.String.
func (p PhysAddr) String() string {
	return fmt.Sprintf("%#x", uint64(p))
}

// IsAligned returns true if v is a multiple of align, which must be a power
// of two.
func (v Addr) IsAligned(align uint64) bool {
	return uint64(v)&(align-1) == 0
}

// IsAligned returns true if p is a multiple of align, which must be a power
// of two.
func (p PhysAddr) IsAligned(align uint64) bool {
	return uint64(p)&(align-1) == 0
}

// PhysAddrBits is the architectural limit on the width of a physical address.
const PhysAddrBits = 52

// IsValid returns true if p fits in PhysAddrBits bits.
func (p PhysAddr) IsValid() bool {
	return uint64(p)>>PhysAddrBits == 0
}

// IsCanonical returns true if v is a canonical 48-bit address, i.e. bits 63
// through 47 are all equal.
func (v Addr) IsCanonical() bool {
	top := uint64(v) >> 47
	return top == 0 || top == 0x1ffff
}
