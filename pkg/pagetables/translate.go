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

// Mapping is a leaf entry as seen by Translate and Walk.
type Mapping struct {
	// Frame is the mapped frame.
	Frame hostarch.Frame

	// Flags are the raw entry flags, including PAT selection bits.
	Flags pte.Flags

	// Level is the level of the leaf entry.
	Level Level
}

// PhysAddr returns the physical address addr translates to, given that addr
// lies in the page described by m.
func (m Mapping) PhysAddr(addr hostarch.Addr) hostarch.PhysAddr {
	return m.Frame.Start() + hostarch.PhysAddr(addr.PageOffset(m.Frame.Size()))
}

// String implements fmt.Stringer.String.
func (m Mapping) String() string {
	return fmt.Sprintf("%v [%v] at %v", m.Frame, m.Flags, m.Level)
}

// leafMapping returns the mapping held by e at level, or false if e
// references a table.
//
// Precondition: e is valid.
func leafMapping(e *pte.Entry, level Level) (Mapping, bool) {
	if level == L4 || (level != L1 && !e.IsHuge()) {
		return Mapping{}, false
	}
	size, _ := level.TargetFrameSize()
	addr := hostarch.PhysAddr(e.Load() & pte.AddressMask(size.Shift()))
	return Mapping{
		Frame: hostarch.MustNewFrame(addr, size),
		Flags: e.LeafFlags(size.Shift()),
		Level: level,
	}, true
}

// Translate returns the mapping that covers addr, or ErrNotMapped.
//
// Translate reads entries outside the managed range as well, so a User
// table resolves the kernel addresses it shares.
func (t *ManagedL4PageTable) Translate(addr hostarch.Addr) (Mapping, error) {
	if !addr.IsCanonical() {
		return Mapping{}, fmt.Errorf("%v is not canonical: %w", addr, ErrNotMapped)
	}
	table := t.rootTable()
	for level := L4; level >= L1; level-- {
		e := &table[level.Index(addr)]
		if !e.Valid() {
			break
		}
		if m, ok := leafMapping(e, level); ok {
			return m, nil
		}
		table = t.config.offset.table(hostarch.PhysAddr(e.Address()))
	}
	return Mapping{}, ErrNotMapped
}

// Walk calls visit for each leaf mapping in the managed range, in address
// order, until visit returns false.
func (t *ManagedL4PageTable) Walk(visit func(page hostarch.Page, m Mapping) bool) {
	root := t.rootTable()
	first, end := t.typ.ManagedRange()
	for i := first; i < end; i++ {
		if !t.walkEntry(&root[i], L4, uint64(i)<<L4.shift(), visit) {
			return
		}
	}
}

func (t *ManagedL4PageTable) walkEntry(e *pte.Entry, level Level, base uint64, visit func(hostarch.Page, Mapping) bool) bool {
	if !e.Valid() {
		return true
	}
	if m, ok := leafMapping(e, level); ok {
		return visit(hostarch.MustNewPage(canonical(base), m.Frame.Size()), m)
	}
	sub, _ := level.SubLevel()
	table := t.config.offset.table(hostarch.PhysAddr(e.Address()))
	for i := range table {
		if !t.walkEntry(&table[i], sub, base|uint64(i)<<sub.shift(), visit) {
			return false
		}
	}
	return true
}

// canonical sign-extends bit 47 of addr.
func canonical(addr uint64) hostarch.Addr {
	if addr&(1<<47) != 0 {
		addr |= 0xffff << 48
	}
	return hostarch.Addr(addr)
}
