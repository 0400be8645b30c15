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

	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pte"
)

// Level is the level of a table in the hierarchy. L4 is the root.
type Level int

// Levels, bottom to top.
const (
	L1 Level = iota + 1
	L2
	L3
	L4
)

const (
	indexBits = 9
	indexMask = pte.EntriesPerTable - 1
)

// String implements fmt.Stringer.String.
func (l Level) String() string {
	if l < L1 || l > L4 {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return fmt.Sprintf("L%d", int(l))
}

// SubLevel returns the level of the tables referenced by entries at l. L1
// entries only reference frames.
func (l Level) SubLevel() (Level, bool) {
	if l <= L1 {
		return 0, false
	}
	return l - 1, true
}

// TargetFrameSize returns the size of the frames mapped directly by entries
// at l. L4 entries never map frames.
func (l Level) TargetFrameSize() (hostarch.PageSize, bool) {
	switch l {
	case L1:
		return hostarch.PageSize4KiB, true
	case L2:
		return hostarch.PageSize2MiB, true
	case L3:
		return hostarch.PageSize1GiB, true
	default:
		return 0, false
	}
}

// shift returns the number of address bits below the index at l.
//
//go:nosplit
func (l Level) shift() uint {
	return hostarch.PageShift + indexBits*uint(l-1)
}

// Index returns the index of the entry at l covering addr.
//
//go:nosplit
func (l Level) Index(addr hostarch.Addr) int {
	return int(uint64(addr)>>l.shift()) & indexMask
}

// levelFor returns the level whose entries map frames of size.
func levelFor(size hostarch.PageSize) Level {
	switch size {
	case hostarch.PageSize4KiB:
		return L1
	case hostarch.PageSize2MiB:
		return L2
	case hostarch.PageSize1GiB:
		return L3
	default:
		panic(fmt.Sprintf("unknown page size %v", size))
	}
}
