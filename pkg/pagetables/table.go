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

// LevelTable is a handle to one table of a hierarchy.
//
// Handles are views into memory owned by the ManagedL4PageTable. They must
// not outlive the operation that obtained them.
type LevelTable struct {
	l4    *ManagedL4PageTable
	table *pte.Table
	addr  hostarch.PhysAddr
	level Level
}

// Level returns the level of the table.
func (t LevelTable) Level() Level {
	return t.level
}

// Address returns the physical address of the table.
func (t LevelTable) Address() hostarch.PhysAddr {
	return t.addr
}

// Entry returns a handle to the entry at index.
//
// At L4, index must lie in the managed range of the owning table. Anything
// else is a fatal contract violation.
func (t LevelTable) Entry(index int) LevelEntry {
	if index < 0 || index >= pte.EntriesPerTable {
		panic(fmt.Sprintf("%v index %d out of range", t.level, index))
	}
	if t.level == L4 {
		if first, end := t.l4.typ.ManagedRange(); index < first || index >= end {
			panic(fmt.Sprintf("%v table accessed L4 index %d outside [%d, %d)", t.l4.typ, index, first, end))
		}
	}
	return LevelEntry{
		l4:    t.l4,
		entry: &t.table[index],
		level: t.level,
	}
}
