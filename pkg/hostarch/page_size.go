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

// PageSize is one of the page granularities supported by 4-level paging.
//
// PageSizes are ordered by size.
type PageSize uint8

const (
	// PageSize4KiB is mapped by an L1 entry.
	PageSize4KiB PageSize = iota

	// PageSize2MiB is mapped by an L2 entry with the huge page bit set.
	PageSize2MiB

	// PageSize1GiB is mapped by an L3 entry with the huge page bit set. Not
	// every CPU supports it.
	PageSize1GiB
)

// Bytes returns the length of the page size in bytes.
func (s PageSize) Bytes() uint64 {
	switch s {
	case PageSize4KiB:
		return PageSizeBytes
	case PageSize2MiB:
		return HugePageSizeBytes
	case PageSize1GiB:
		return SuperPageSizeBytes
	default:
		panic(fmt.Sprintf("invalid page size %d", uint8(s)))
	}
}

// Shift returns the binary log of Bytes.
func (s PageSize) Shift() uint {
	switch s {
	case PageSize4KiB:
		return PageShift
	case PageSize2MiB:
		return HugePageShift
	case PageSize1GiB:
		return SuperPageShift
	default:
		panic(fmt.Sprintf("invalid page size %d", uint8(s)))
	}
}

// String implements fmt.Stringer.String.
func (s PageSize) String() string {
	switch s {
	case PageSize4KiB:
		return "4KiB"
	case PageSize2MiB:
		return "2MiB"
	case PageSize1GiB:
		return "1GiB"
	default:
		return fmt.Sprintf("PageSize(%d)", uint8(s))
	}
}

// ParsePageSize parses the String form of a page size.
func ParsePageSize(s string) (PageSize, error) {
	switch s {
	case "4KiB", "4K", "4k":
		return PageSize4KiB, nil
	case "2MiB", "2M", "2m":
		return PageSize2MiB, nil
	case "1GiB", "1G", "1g":
		return PageSize1GiB, nil
	default:
		return 0, fmt.Errorf("unknown page size %q", s)
	}
}
