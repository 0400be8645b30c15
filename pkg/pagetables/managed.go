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

// L4Type distinguishes the kernel hierarchy from per-process hierarchies.
type L4Type int

const (
	// Kernel tables hold the higher half. Their L3 tables exist before any
	// process is created and are shared, by copying L4 entries, into every
	// User table.
	Kernel L4Type = iota

	// User tables hold the lower half of one process.
	User
)

// kernelFirstIndex is the first L4 index of the higher half.
const kernelFirstIndex = pte.EntriesPerTable / 2

// String implements fmt.Stringer.String.
func (t L4Type) String() string {
	switch t {
	case Kernel:
		return "kernel"
	case User:
		return "user"
	default:
		return fmt.Sprintf("L4Type(%d)", int(t))
	}
}

// ManagedRange returns the L4 indexes [first, end) a table of type t may
// access through handles.
func (t L4Type) ManagedRange() (first, end int) {
	if t == Kernel {
		return kernelFirstIndex, pte.EntriesPerTable
	}
	return 0, kernelFirstIndex
}

// ManagedL4PageTable is the root of one 4-level hierarchy.
//
// Callers must serialize all mutating calls.
type ManagedL4PageTable struct {
	root   Owned4KiBFrame
	config *Config
	typ    L4Type
}

// NewKernel returns the kernel table rooted at root. root must already hold
// a valid L4 table, normally an empty one followed by PopulateKernelHalf.
func NewKernel(root Owned4KiBFrame, config *Config) *ManagedL4PageTable {
	return &ManagedL4PageTable{root: root, config: config, typ: Kernel}
}

// NewUser returns a process table rooted at root. root must already hold a
// valid L4 table, normally an empty one followed by ShareKernelHalf.
func NewUser(root Owned4KiBFrame, config *Config) *ManagedL4PageTable {
	return &ManagedL4PageTable{root: root, config: config, typ: User}
}

// Type returns the table type.
func (t *ManagedL4PageTable) Type() L4Type {
	return t.typ
}

// Config returns the configuration.
func (t *ManagedL4PageTable) Config() *Config {
	return t.config
}

// Root returns the frame holding the L4 table: the value to load into CR3.
func (t *ManagedL4PageTable) Root() hostarch.Frame {
	return t.root.Frame()
}

// Release gives up the table and returns its root frame. Intermediate
// tables are not reclaimed. t must not be used afterwards.
func (t *ManagedL4PageTable) Release() Owned4KiBFrame {
	root := t.root
	t.root = Owned4KiBFrame{}
	t.config = nil
	return root
}

// rootTable returns the raw L4 table.
func (t *ManagedL4PageTable) rootTable() *pte.Table {
	return t.config.offset.table(t.root.Start())
}

// L4 returns a handle to the root table.
func (t *ManagedL4PageTable) L4() LevelTable {
	return LevelTable{
		l4:    t,
		table: t.rootTable(),
		addr:  t.root.Start(),
		level: L4,
	}
}

// String implements fmt.Stringer.String.
func (t *ManagedL4PageTable) String() string {
	return fmt.Sprintf("%v L4 at %v", t.typ, t.root)
}

// walk descends from L4 to the entry mapping page, without creating tables.
// On failure the returned level is the one whose entry had no table.
func (t *ManagedL4PageTable) walk(page hostarch.Page) (LevelEntry, Level, error) {
	target := levelFor(page.Size())
	table := t.L4()
	for table.level > target {
		next, err := table.Entry(table.level.Index(page.Start())).PageTable()
		if err != nil {
			return LevelEntry{}, table.level, err
		}
		table = next
	}
	return table.Entry(target.Index(page.Start())), target, nil
}
