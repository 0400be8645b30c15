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

// ConfigurableFlags are the per-mapping choices a caller makes. Everything
// else in a leaf entry is derived from the level and the table type.
type ConfigurableFlags struct {
	Writable   bool
	Executable bool
	MemoryType hostarch.MemoryType
}

// String implements fmt.Stringer.String.
func (f ConfigurableFlags) String() string {
	perms := []byte("r--")
	if f.Writable {
		perms[1] = 'w'
	}
	if f.Executable {
		perms[2] = 'x'
	}
	return fmt.Sprintf("%s %s", perms, f.MemoryType.ShortString())
}

// leafFlags computes the hardware flags of a leaf entry at level l.
//
// GLOBAL is only ever set here, never on an entry that references a table.
func (t *ManagedL4PageTable) leafFlags(flags ConfigurableFlags, l Level) pte.Flags {
	size, ok := l.TargetFrameSize()
	if !ok {
		panic(fmt.Sprintf("no leaf flags at %v", l))
	}
	patFlags, err := t.config.pat.FlagsFor(flags.MemoryType, size)
	if err != nil {
		// Six memory types fit in eight PAT slots; a miss means the PAT
		// handle does not match the programmed layout.
		panic(fmt.Sprintf("PAT has no encoding for %v at %v: %v", flags.MemoryType, size, err))
	}
	f := pte.Present | patFlags
	if l != L1 {
		f |= pte.HugePage
	}
	if flags.Writable {
		f |= pte.Writable
	}
	if !flags.Executable {
		f |= pte.NoExecute
	}
	switch t.typ {
	case User:
		f |= pte.UserAccessible
	case Kernel:
		f |= pte.Global
	}
	return f
}

// tableFlags are installed on every entry that references a table. The
// leaf entry narrows them.
const tableFlags = pte.Present | pte.Writable | pte.UserAccessible
