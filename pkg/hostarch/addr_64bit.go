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

// RoundDown returns the address rounded down to the nearest boundary of the
// given page size.
func (v Addr) RoundDown(size PageSize) Addr {
	return v &^ Addr(size.Bytes()-1)
}

// RoundUp returns the address rounded up to the nearest boundary of the
// given page size. ok is true iff rounding up did not wrap around.
func (v Addr) RoundUp(size PageSize) (addr Addr, ok bool) {
	addr = Addr(uint64(v) + size.Bytes() - 1).RoundDown(size)
	ok = addr >= v
	return
}

// PageOffset returns the offset of v within a page of the given size.
func (v Addr) PageOffset(size PageSize) uint64 {
	return uint64(v) & (size.Bytes() - 1)
}

// RoundDown returns the address rounded down to the nearest boundary of the
// given page size.
func (p PhysAddr) RoundDown(size PageSize) PhysAddr {
	return p &^ PhysAddr(size.Bytes()-1)
}
