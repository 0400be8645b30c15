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

// Package addrspace serializes access to page tables and records what they
// map.
//
// Each AddressSpace wraps one ManagedL4PageTable. Operations on a user
// address space hold that space's mutex; operations on the kernel address
// space hold a single process-wide mutex, since its tables are shared by
// every user address space.
package addrspace

import (
	"errors"
	"fmt"

	"github.com/google/btree"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/log"
	"gvisor.dev/l4paging/pkg/pagetables"
	"gvisor.dev/l4paging/pkg/sync"
)

var (
	// ErrOverlap is returned by Map when the page overlaps a recorded
	// mapping.
	ErrOverlap = errors.New("page overlaps an existing mapping")

	// ErrNoMapping is returned when no mapping is recorded for a page.
	ErrNoMapping = errors.New("no mapping recorded for page")
)

// kernelMu serializes every operation on the kernel address space.
var kernelMu sync.Mutex

// btreeDegree is the degree of the mapping ledger.
const btreeDegree = 16

// Mapping is one mapping installed through an AddressSpace.
type Mapping struct {
	Page  hostarch.Page
	Frame hostarch.Frame
	Flags pagetables.ConfigurableFlags
}

// String implements fmt.Stringer.String.
func (m Mapping) String() string {
	return fmt.Sprintf("%v -> %v %v", m.Page, m.Frame, m.Flags)
}

// last returns the last address of p.
func last(p hostarch.Page) hostarch.Addr {
	return p.Start() + hostarch.Addr(p.Size().Bytes()-1)
}

func lessByStart(a, b Mapping) bool {
	return a.Page.Start() < b.Page.Start()
}

// AddressSpace is a page table together with the ledger of its mappings.
type AddressSpace struct {
	// mu protects the table and the ledger of a user address space. Kernel
	// address spaces use kernelMu instead.
	mu sync.Mutex

	table *pagetables.ManagedL4PageTable
	alloc pagetables.Allocator

	// mappings is ordered by start address. Mappings never overlap, so the
	// start address identifies a mapping.
	mappings *btree.BTreeG[Mapping]
}

// New returns an AddressSpace for table, allocating intermediate tables from
// alloc. A kernel table is populated first.
func New(table *pagetables.ManagedL4PageTable, alloc pagetables.Allocator) (*AddressSpace, error) {
	as := &AddressSpace{
		table:    table,
		alloc:    alloc,
		mappings: btree.NewG[Mapping](btreeDegree, lessByStart),
	}
	if table.Type() == pagetables.Kernel {
		kernelMu.Lock()
		defer kernelMu.Unlock()
		if err := pagetables.PopulateKernelHalf(table, alloc); err != nil {
			return nil, fmt.Errorf("populating %v: %w", table, err)
		}
	}
	return as, nil
}

// lock locks the mutex guarding as and returns it.
func (as *AddressSpace) lock() sync.Locker {
	l := sync.Locker(&as.mu)
	if as.table.Type() == pagetables.Kernel {
		l = &kernelMu
	}
	l.Lock()
	return l
}

// ShareKernel installs the kernel's higher half into a user address space.
func (as *AddressSpace) ShareKernel(kernel *AddressSpace) {
	if as.table.Type() != pagetables.User {
		panic(fmt.Sprintf("ShareKernel into %v", as.table))
	}
	l := as.lock()
	defer l.Unlock()
	kernelMu.Lock()
	defer kernelMu.Unlock()
	as.table.ShareKernelHalf(kernel.table)
}

// Table returns the underlying table. Callers must not mutate it directly.
func (as *AddressSpace) Table() *pagetables.ManagedL4PageTable {
	return as.table
}

// overlapping returns a recorded mapping that overlaps p, if any.
//
// Preconditions: as is locked.
func (as *AddressSpace) overlapping(p hostarch.Page) (Mapping, bool) {
	var found Mapping
	ok := false
	// The candidate is the mapping with the highest start not after the
	// end of p.
	pivot := Mapping{Page: hostarch.MustNewPage(last(p).RoundDown(hostarch.PageSize4KiB), hostarch.PageSize4KiB)}
	as.mappings.DescendLessOrEqual(pivot, func(m Mapping) bool {
		if last(m.Page) >= p.Start() {
			found, ok = m, true
		}
		return false
	})
	return found, ok
}

// Map maps page to frame.
func (as *AddressSpace) Map(page hostarch.Page, frame hostarch.Frame, flags pagetables.ConfigurableFlags) error {
	l := as.lock()
	defer l.Unlock()
	if m, ok := as.overlapping(page); ok {
		return fmt.Errorf("mapping %v: %w: %v", page, ErrOverlap, m)
	}
	if err := as.table.MapPage(page, frame, flags, as.alloc); err != nil {
		return err
	}
	m := Mapping{Page: page, Frame: frame, Flags: flags}
	as.mappings.ReplaceOrInsert(m)
	if log.IsLogging(log.Debug) {
		log.Debugf("addrspace: %v: map %v", as.table, m)
	}
	return nil
}

// recorded returns the mapping recorded for exactly page.
//
// Preconditions: as is locked.
func (as *AddressSpace) recorded(page hostarch.Page) (Mapping, error) {
	m, ok := as.mappings.Get(Mapping{Page: page})
	if !ok || m.Page != page {
		return Mapping{}, fmt.Errorf("%v: %w", page, ErrNoMapping)
	}
	return m, nil
}

// Unmap removes the mapping of page and returns its frame.
func (as *AddressSpace) Unmap(page hostarch.Page) (hostarch.Frame, error) {
	l := as.lock()
	defer l.Unlock()
	if _, err := as.recorded(page); err != nil {
		return hostarch.Frame{}, err
	}
	frame, err := as.table.UnmapPage(page)
	if err != nil {
		return hostarch.Frame{}, err
	}
	as.mappings.Delete(Mapping{Page: page})
	if log.IsLogging(log.Debug) {
		log.Debugf("addrspace: %v: unmap %v from %v", as.table, page, frame)
	}
	return frame, nil
}

// Protect changes the flags of the mapping of page.
func (as *AddressSpace) Protect(page hostarch.Page, flags pagetables.ConfigurableFlags) error {
	l := as.lock()
	defer l.Unlock()
	m, err := as.recorded(page)
	if err != nil {
		return err
	}
	if err := as.table.UpdateFlags(page, flags); err != nil {
		return err
	}
	m.Flags = flags
	as.mappings.ReplaceOrInsert(m)
	if log.IsLogging(log.Debug) {
		log.Debugf("addrspace: %v: protect %v", as.table, m)
	}
	return nil
}

// Lookup returns the mapping that contains addr.
func (as *AddressSpace) Lookup(addr hostarch.Addr) (Mapping, bool) {
	page, err := hostarch.NewPage(addr.RoundDown(hostarch.PageSize4KiB), hostarch.PageSize4KiB)
	if err != nil {
		return Mapping{}, false
	}
	l := as.lock()
	defer l.Unlock()
	return as.overlapping(page)
}

// Mappings returns the recorded mappings in address order.
func (as *AddressSpace) Mappings() []Mapping {
	l := as.lock()
	defer l.Unlock()
	ms := make([]Mapping, 0, as.mappings.Len())
	as.mappings.Ascend(func(m Mapping) bool {
		ms = append(ms, m)
		return true
	})
	return ms
}

// Len returns the number of recorded mappings.
func (as *AddressSpace) Len() int {
	l := as.lock()
	defer l.Unlock()
	return as.mappings.Len()
}

// Teardown unmaps every recorded mapping and returns the frames that were
// mapped, in address order. Mappings that fail to unmap stay recorded.
func (as *AddressSpace) Teardown() ([]hostarch.Frame, error) {
	l := as.lock()
	defer l.Unlock()
	var (
		frames []hostarch.Frame
		errs   []error
		done   []Mapping
	)
	as.mappings.Ascend(func(m Mapping) bool {
		frame, err := as.table.UnmapPage(m.Page)
		if err != nil {
			errs = append(errs, err)
			return true
		}
		frames = append(frames, frame)
		done = append(done, m)
		return true
	})
	for _, m := range done {
		as.mappings.Delete(m)
	}
	log.Infof("addrspace: %v: tore down %d mappings", as.table, len(done))
	return frames, errors.Join(errs...)
}
