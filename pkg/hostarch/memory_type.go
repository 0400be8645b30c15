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

// MemoryType specifies CPU memory access behavior. On x86 each MemoryType is
// selected through a slot of the page attribute table (PAT).
type MemoryType uint8

const (
	// MemoryTypeWriteBack is x86 Write-back (WB), appropriate for typical
	// memory. It must be the zero value for MemoryType.
	MemoryTypeWriteBack MemoryType = iota

	// MemoryTypeWriteThrough is x86 Write-through (WT).
	MemoryTypeWriteThrough

	// MemoryTypeUncachedMinus is x86 Uncacheable (UC-), which an MTRR
	// setting of WC may still downgrade to write-combining.
	MemoryTypeUncachedMinus

	// MemoryTypeUncached is x86 Strong Uncacheable (UC).
	MemoryTypeUncached

	// MemoryTypeWriteCombine is x86 Write-combining (WC).
	MemoryTypeWriteCombine

	// MemoryTypeWriteProtect is x86 Write-protected (WP).
	MemoryTypeWriteProtect

	// NumMemoryTypes is the number of memory types.
	NumMemoryTypes
)

// String implements fmt.Stringer.String.
func (mt MemoryType) String() string {
	switch mt {
	case MemoryTypeWriteBack:
		return "WriteBack"
	case MemoryTypeWriteThrough:
		return "WriteThrough"
	case MemoryTypeUncachedMinus:
		return "UncachedMinus"
	case MemoryTypeUncached:
		return "Uncached"
	case MemoryTypeWriteCombine:
		return "WriteCombine"
	case MemoryTypeWriteProtect:
		return "WriteProtect"
	default:
		return fmt.Sprintf("%d", mt)
	}
}

// ShortString returns a compact string representing the MemoryType.
func (mt MemoryType) ShortString() string {
	switch mt {
	case MemoryTypeWriteBack:
		return "WB"
	case MemoryTypeWriteThrough:
		return "WT"
	case MemoryTypeUncachedMinus:
		return "UC-"
	case MemoryTypeUncached:
		return "UC"
	case MemoryTypeWriteCombine:
		return "WC"
	case MemoryTypeWriteProtect:
		return "WP"
	default:
		return fmt.Sprintf("%02d", mt)
	}
}

// ParseMemoryType accepts either the String or the ShortString form.
func ParseMemoryType(s string) (MemoryType, error) {
	for mt := MemoryType(0); mt < NumMemoryTypes; mt++ {
		if s == mt.String() || s == mt.ShortString() {
			return mt, nil
		}
	}
	return 0, fmt.Errorf("unknown memory type %q", s)
}
