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

	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/log"
	"gvisor.dev/l4paging/pkg/pte"
)

// LevelEntry is a handle to one entry of a table.
type LevelEntry struct {
	l4    *ManagedL4PageTable
	entry *pte.Entry
	level Level
}

// Level returns the level of the table holding the entry.
func (e LevelEntry) Level() Level {
	return e.level
}

// IsEmpty returns true iff the entry is zero.
func (e LevelEntry) IsEmpty() bool {
	return e.entry.IsUnused()
}

// String implements fmt.Stringer.String.
func (e LevelEntry) String() string {
	return fmt.Sprintf("%v %v", e.level, e.entry)
}

// PageTable returns the table referenced by the entry.
func (e LevelEntry) PageTable() (LevelTable, error) {
	sub, ok := e.level.SubLevel()
	if !ok {
		return LevelTable{}, GetTableIsL1
	}
	if e.entry.IsUnused() {
		return LevelTable{}, GetTableNotMapped
	}
	if e.entry.IsHuge() {
		return LevelTable{}, GetTableMappedToFrame
	}
	addr := hostarch.PhysAddr(e.entry.Address())
	return LevelTable{
		l4:    e.l4,
		table: e.l4.config.offset.table(addr),
		addr:  addr,
		level: sub,
	}, nil
}

// SetPageTable clears frame and installs it as the table referenced by the
// entry.
//
// Precondition: the entry is empty, and is not an L4 entry of a Kernel
// table. Kernel L3 tables are created only by PopulateKernelHalf.
func (e LevelEntry) SetPageTable(frame Owned4KiBFrame) (LevelTable, error) {
	if e.level == L1 {
		return LevelTable{}, SetTableIsL1
	}
	if e.level == L4 && e.l4.typ == Kernel {
		panic(fmt.Sprintf("new L3 table %v under a kernel L4 entry", frame))
	}
	return e.setPageTable(frame), nil
}

// setPageTable is SetPageTable without the kernel check.
func (e LevelEntry) setPageTable(frame Owned4KiBFrame) LevelTable {
	if !e.entry.IsUnused() {
		panic(fmt.Sprintf("new table %v over a live entry %v", frame, e))
	}
	sub, _ := e.level.SubLevel()
	addr := frame.Start()
	table := e.l4.config.offset.zeroTable(addr)
	e.entry.Set(uint64(addr), tableFlags)
	if log.IsLogging(log.Debug) {
		log.Debugf("pagetables: new %v table at %v", sub, addr)
	}
	return LevelTable{
		l4:    e.l4,
		table: table,
		addr:  addr,
		level: sub,
	}
}

// SetFrame maps frame with flags.
func (e LevelEntry) SetFrame(frame hostarch.Frame, flags ConfigurableFlags) error {
	size, ok := e.level.TargetFrameSize()
	if !ok || size != frame.Size() {
		return SetFrameNotAllowed
	}
	if size == hostarch.PageSize1GiB && !e.l4.config.features.HasFeature(cpuid.X86FeatureGBPAGES) {
		return SetFrameSizeNotSupported
	}
	if !e.entry.IsUnused() {
		return SetFrameAlreadyMapped
	}
	e.entry.Set(uint64(frame.Start()), e.l4.leafFlags(flags, e.level))
	return nil
}

// leafSize validates that the entry maps a frame and returns its size.
func (e LevelEntry) leafSize() (hostarch.PageSize, leafState) {
	size, ok := e.level.TargetFrameSize()
	switch {
	case !ok:
		return 0, leafIsL4
	case !e.entry.Valid():
		return 0, leafNotPresent
	case e.level != L1 && !e.entry.IsHuge():
		return 0, leafIsTable
	}
	return size, leafOK
}

type leafState int

const (
	leafOK leafState = iota
	leafIsL4
	leafNotPresent
	leafIsTable
)

// UnmapFrame clears the entry and returns the frame it mapped.
func (e LevelEntry) UnmapFrame() (hostarch.Frame, error) {
	size, state := e.leafSize()
	switch state {
	case leafIsL4:
		return hostarch.Frame{}, UnmapFrameIsL4
	case leafNotPresent:
		return hostarch.Frame{}, UnmapFrameNotPresent
	case leafIsTable:
		return hostarch.Frame{}, UnmapFrameIsPageTable
	}
	addr := hostarch.PhysAddr(e.entry.Load() & pte.AddressMask(size.Shift()))
	e.entry.Clear()
	return hostarch.MustNewFrame(addr, size), nil
}

// SetFlags replaces the flags of the mapped frame, keeping its address.
func (e LevelEntry) SetFlags(flags ConfigurableFlags) error {
	size, state := e.leafSize()
	switch state {
	case leafIsL4:
		return SetFlagsIsL4
	case leafNotPresent:
		return SetFlagsNotPresent
	case leafIsTable:
		return SetFlagsIsPageTable
	}
	e.entry.SetFlags(pte.AddressMask(size.Shift()), e.l4.leafFlags(flags, e.level))
	return nil
}
