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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pat"
	"gvisor.dev/l4paging/pkg/pte"
)

const kernelBase = hostarch.Addr(0xffff_8000_0000_0000)

var (
	rwNX = ConfigurableFlags{Writable: true, MemoryType: hostarch.MemoryTypeWriteBack}
	rx   = ConfigurableFlags{Executable: true, MemoryType: hostarch.MemoryTypeWriteBack}
)

func page(addr hostarch.Addr, size hostarch.PageSize) hostarch.Page {
	return hostarch.MustNewPage(addr, size)
}

func frame(addr hostarch.PhysAddr, size hostarch.PageSize) hostarch.Frame {
	return hostarch.MustNewFrame(addr, size)
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestLevel(t *testing.T) {
	for _, tc := range []struct {
		level    Level
		sub      Level
		hasSub   bool
		size     hostarch.PageSize
		hasFrame bool
	}{
		{L4, L3, true, 0, false},
		{L3, L2, true, hostarch.PageSize1GiB, true},
		{L2, L1, true, hostarch.PageSize2MiB, true},
		{L1, 0, false, hostarch.PageSize4KiB, true},
	} {
		t.Run(tc.level.String(), func(t *testing.T) {
			if sub, ok := tc.level.SubLevel(); sub != tc.sub || ok != tc.hasSub {
				t.Errorf("SubLevel() = %v, %v, want %v, %v", sub, ok, tc.sub, tc.hasSub)
			}
			if size, ok := tc.level.TargetFrameSize(); size != tc.size || ok != tc.hasFrame {
				t.Errorf("TargetFrameSize() = %v, %v, want %v, %v", size, ok, tc.size, tc.hasFrame)
			}
		})
	}

	addr := hostarch.Addr(0x0000_7f12_3456_7000)
	for _, tc := range []struct {
		level Level
		want  int
	}{
		{L4, 0xfe},
		{L3, 0x48},
		{L2, 0x1a2},
		{L1, 0x167},
	} {
		if got := tc.level.Index(addr); got != tc.want {
			t.Errorf("%v.Index(%v) = %#x, want %#x", tc.level, addr, got, tc.want)
		}
	}
	if got := L4.Index(kernelBase); got != kernelFirstIndex {
		t.Errorf("L4.Index(%v) = %d, want %d", kernelBase, got, kernelFirstIndex)
	}
}

func TestMaxPageSize(t *testing.T) {
	without := make(cpuid.Static).ToFeatureSet()
	if got := MaxPageSize(&without); got != hostarch.PageSize2MiB {
		t.Errorf("MaxPageSize without GBPAGES = %v, want %v", got, hostarch.PageSize2MiB)
	}
	with := make(cpuid.Static).Add(cpuid.X86FeatureGBPAGES).ToFeatureSet()
	if got := MaxPageSize(&with); got != hostarch.PageSize1GiB {
		t.Errorf("MaxPageSize with GBPAGES = %v, want %v", got, hostarch.PageSize1GiB)
	}
}

func TestOwned4KiBFrame(t *testing.T) {
	f := frame(0x5000, hostarch.PageSize4KiB)
	o := UnsafeOwned4KiBFrame(f)
	if got := o.Release(); got != f {
		t.Errorf("Release() = %v, want %v", got, f)
	}
	expectPanic(t, "UnsafeOwned4KiBFrame(2MiB)", func() {
		UnsafeOwned4KiBFrame(frame(0x200000, hostarch.PageSize2MiB))
	})
}

func TestMapUnmapRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name  string
		typ   L4Type
		page  hostarch.Page
		frame hostarch.Frame
	}{
		{"user 4KiB", User, page(0x1000, hostarch.PageSize4KiB), frame(0x2000, hostarch.PageSize4KiB)},
		{"user 2MiB", User, page(0x4020_0000, hostarch.PageSize2MiB), frame(0x60_0000, hostarch.PageSize2MiB)},
		{"user 1GiB", User, page(0x40_0000_0000, hostarch.PageSize1GiB), frame(0x8000_0000, hostarch.PageSize1GiB)},
		{"kernel 4KiB", Kernel, page(kernelBase+0x1000, hostarch.PageSize4KiB), frame(0x7000, hostarch.PageSize4KiB)},
		{"kernel 2MiB", Kernel, page(kernelBase+0x20_0000, hostarch.PageSize2MiB), frame(0x20_0000, hostarch.PageSize2MiB)},
		{"kernel 1GiB", Kernel, page(kernelBase+0x4000_0000, hostarch.PageSize1GiB), frame(0, hostarch.PageSize1GiB)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tt := newTestTables(t, tc.typ, cpuid.X86FeatureGBPAGES)
			if err := tt.table.MapPage(tc.page, tc.frame, rwNX, tt.mem); err != nil {
				t.Fatalf("MapPage(%v, %v) failed: %v", tc.page, tc.frame, err)
			}
			if got := tt.tlb.Invalidated(); len(got) != 0 {
				t.Errorf("MapPage invalidated %v, want nothing", got)
			}

			got, err := tt.table.UnmapPage(tc.page)
			if err != nil {
				t.Fatalf("UnmapPage(%v) failed: %v", tc.page, err)
			}
			if got != tc.frame {
				t.Errorf("UnmapPage(%v) = %v, want %v", tc.page, got, tc.frame)
			}
			if diff := cmp.Diff([]hostarch.Addr{tc.page.Start()}, tt.tlb.Invalidated()); diff != "" {
				t.Errorf("invalidations mismatch (-want +got):\n%s", diff)
			}

			_, err = tt.table.UnmapPage(tc.page)
			if !errors.Is(err, UnmapFrameNotPresent) {
				t.Errorf("second UnmapPage(%v) = %v, want %v", tc.page, err, UnmapFrameNotPresent)
			}
			if len(tt.tlb.Invalidated()) != 1 {
				t.Errorf("failed UnmapPage invalidated the TLB")
			}
		})
	}
}

func TestMapTwice(t *testing.T) {
	tt := newTestTables(t, User)
	p := page(0x1000, hostarch.PageSize4KiB)
	first := frame(0x2000, hostarch.PageSize4KiB)
	if err := tt.table.MapPage(p, first, rwNX, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}
	before, err := tt.table.Translate(p.Start())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	err = tt.table.MapPage(p, frame(0x3000, hostarch.PageSize4KiB), rx, tt.mem)
	if !errors.Is(err, SetFrameAlreadyMapped) {
		t.Fatalf("second MapPage = %v, want %v", err, SetFrameAlreadyMapped)
	}
	var mpe *MapPageError
	if !errors.As(err, &mpe) || mpe.Level != L1 || mpe.Page != p {
		t.Errorf("second MapPage error = %#v, want a MapPageError at L1 for %v", err, p)
	}

	after, err := tt.table.Translate(p.Start())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if diff := cmp.Diff(before, after, cmp.AllowUnexported(hostarch.Frame{})); diff != "" {
		t.Errorf("entry changed by the failed MapPage (-before +after):\n%s", diff)
	}
	if got, err := tt.table.UnmapPage(p); err != nil || got != first {
		t.Errorf("UnmapPage = %v, %v, want %v, nil", got, err, first)
	}
}

func TestUpdateFlags(t *testing.T) {
	for _, size := range []hostarch.PageSize{hostarch.PageSize4KiB, hostarch.PageSize2MiB, hostarch.PageSize1GiB} {
		t.Run(size.String(), func(t *testing.T) {
			tt := newTestTables(t, User, cpuid.X86FeatureGBPAGES)
			p := page(hostarch.Addr(3*size.Bytes()), size)
			f := frame(hostarch.PhysAddr(5*size.Bytes()), size)
			if err := tt.table.MapPage(p, f, rwNX, tt.mem); err != nil {
				t.Fatalf("MapPage failed: %v", err)
			}

			wc := ConfigurableFlags{Executable: true, MemoryType: hostarch.MemoryTypeWriteCombine}
			if err := tt.table.UpdateFlags(p, wc); err != nil {
				t.Fatalf("UpdateFlags failed: %v", err)
			}
			if diff := cmp.Diff([]hostarch.Addr{p.Start()}, tt.tlb.Invalidated()); diff != "" {
				t.Errorf("invalidations mismatch (-want +got):\n%s", diff)
			}

			m, err := tt.table.Translate(p.Start())
			if err != nil {
				t.Fatalf("Translate failed: %v", err)
			}
			if m.Frame != f {
				t.Errorf("frame after UpdateFlags = %v, want %v", m.Frame, f)
			}
			if m.Flags.Contains(pte.Writable) || m.Flags.Contains(pte.NoExecute) {
				t.Errorf("flags %v still carry the old permissions", m.Flags)
			}
			if got := pat.Managed().Decode(m.Flags, size); got != hostarch.MemoryTypeWriteCombine {
				t.Errorf("memory type = %v, want %v", got, hostarch.MemoryTypeWriteCombine)
			}

			if got, err := tt.table.UnmapPage(p); err != nil || got != f {
				t.Errorf("UnmapPage = %v, %v, want %v, nil", got, err, f)
			}
		})
	}
}

func TestGigabytePagesNeedCPUSupport(t *testing.T) {
	p := page(0x4000_0000, hostarch.PageSize1GiB)
	f := frame(0x8000_0000, hostarch.PageSize1GiB)

	tt := newTestTables(t, User)
	err := tt.table.MapPage(p, f, rwNX, tt.mem)
	if !errors.Is(err, SetFrameSizeNotSupported) {
		t.Errorf("MapPage without GBPAGES = %v, want %v", err, SetFrameSizeNotSupported)
	}

	tt = newTestTables(t, User, cpuid.X86FeatureGBPAGES)
	if err := tt.table.MapPage(p, f, rwNX, tt.mem); err != nil {
		t.Fatalf("MapPage with GBPAGES failed: %v", err)
	}
	m, err := tt.table.Translate(p.Start() + 0x1234)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got, want := m.PhysAddr(p.Start()+0x1234), f.Start()+0x1234; got != want {
		t.Errorf("PhysAddr = %v, want %v", got, want)
	}
	if m.Level != L3 {
		t.Errorf("mapping level = %v, want %v", m.Level, L3)
	}
}

func TestManagedRange(t *testing.T) {
	user := newTestTables(t, User)
	kernel := newTestTables(t, Kernel)

	for _, i := range []int{kernelFirstIndex, pte.EntriesPerTable - 1} {
		expectPanic(t, "user L4 entry", func() { user.table.L4().Entry(i) })
	}
	for _, i := range []int{0, kernelFirstIndex - 1} {
		expectPanic(t, "kernel L4 entry", func() { kernel.table.L4().Entry(i) })
	}
	expectPanic(t, "L4 entry -1", func() { user.table.L4().Entry(-1) })

	// In range is fine.
	user.table.L4().Entry(kernelFirstIndex - 1)
	kernel.table.L4().Entry(kernelFirstIndex)

	// Mapping through the wrong table reaches the same check.
	expectPanic(t, "user MapPage in the higher half", func() {
		user.table.MapPage(page(kernelBase, hostarch.PageSize4KiB), frame(0x1000, hostarch.PageSize4KiB), rwNX, user.mem)
	})
	expectPanic(t, "kernel MapPage in the lower half", func() {
		kernel.table.MapPage(page(0x1000, hostarch.PageSize4KiB), frame(0x1000, hostarch.PageSize4KiB), rwNX, kernel.mem)
	})
}

func TestKernelCannotCreateL3(t *testing.T) {
	mem := newTestMemory(t, 16)
	root, _ := mem.AllocateFrame()
	fs := make(cpuid.Static).ToFeatureSet()
	table := NewKernel(root, NewConfig(pat.Managed(), mem.offset()).WithFeatures(&fs))

	expectPanic(t, "kernel MapPage without PopulateKernelHalf", func() {
		table.MapPage(page(kernelBase, hostarch.PageSize4KiB), frame(0x1000, hostarch.PageSize4KiB), rwNX, mem)
	})
	owned, _ := mem.AllocateFrame()
	expectPanic(t, "kernel SetPageTable at L4", func() {
		table.L4().Entry(kernelFirstIndex).SetPageTable(owned)
	})
}

func TestUserScenarioFlags(t *testing.T) {
	tt := newTestTables(t, User)
	p := page(0x1000, hostarch.PageSize4KiB)
	f := frame(0x2000, hostarch.PageSize4KiB)
	if err := tt.table.MapPage(p, f, rwNX, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}
	m, err := tt.table.Translate(p.Start())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	want := pte.Present | pte.Writable | pte.UserAccessible | pte.NoExecute
	if m.Flags != want {
		t.Errorf("flags = %v, want %v", m.Flags, want)
	}
	if m.Flags&(pte.HugePage|pte.Global) != 0 {
		t.Errorf("flags %v include HUGE_PAGE or GLOBAL", m.Flags)
	}
	if m.Frame != f {
		t.Errorf("frame = %v, want %v", m.Frame, f)
	}
}

func TestKernelScenarioFlags(t *testing.T) {
	tt := newTestTables(t, Kernel)
	p := page(kernelBase+0x20_0000, hostarch.PageSize2MiB)
	if err := tt.table.MapPage(p, frame(0x40_0000, hostarch.PageSize2MiB), rx, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}
	m, err := tt.table.Translate(p.Start())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if want := pte.Present | pte.HugePage | pte.Global; !m.Flags.Contains(want) {
		t.Errorf("flags = %v, want at least %v", m.Flags, want)
	}
	if m.Flags&(pte.UserAccessible|pte.NoExecute|pte.Writable) != 0 {
		t.Errorf("flags = %v, want no U, NX or W", m.Flags)
	}
}

func TestEntryErrors(t *testing.T) {
	tt := newTestTables(t, User)
	p := page(0x1000, hostarch.PageSize4KiB)
	if err := tt.table.MapPage(p, frame(0x2000, hostarch.PageSize4KiB), rwNX, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}

	l4e := tt.table.L4().Entry(0)
	if err := l4e.SetFrame(frame(0, hostarch.PageSize1GiB), rwNX); err != SetFrameNotAllowed {
		t.Errorf("L4 SetFrame = %v, want %v", err, SetFrameNotAllowed)
	}
	if _, err := l4e.UnmapFrame(); err != UnmapFrameIsL4 {
		t.Errorf("L4 UnmapFrame = %v, want %v", err, UnmapFrameIsL4)
	}
	if err := l4e.SetFlags(rwNX); err != SetFlagsIsL4 {
		t.Errorf("L4 SetFlags = %v, want %v", err, SetFlagsIsL4)
	}

	l3, err := l4e.PageTable()
	if err != nil {
		t.Fatalf("L4 PageTable failed: %v", err)
	}
	l3e := l3.Entry(0)
	if _, err := l3e.UnmapFrame(); err != UnmapFrameIsPageTable {
		t.Errorf("L3 UnmapFrame = %v, want %v", err, UnmapFrameIsPageTable)
	}
	if err := l3e.SetFlags(rwNX); err != SetFlagsIsPageTable {
		t.Errorf("L3 SetFlags = %v, want %v", err, SetFlagsIsPageTable)
	}
	if err := l3e.SetFrame(frame(0, hostarch.PageSize2MiB), rwNX); err != SetFrameNotAllowed {
		t.Errorf("L3 SetFrame(2MiB) = %v, want %v", err, SetFrameNotAllowed)
	}
	if _, err := l3.Entry(1).PageTable(); err != GetTableNotMapped {
		t.Errorf("empty L3 PageTable = %v, want %v", err, GetTableNotMapped)
	}

	l2, err := l3e.PageTable()
	if err != nil {
		t.Fatalf("L3 PageTable failed: %v", err)
	}
	l1, err := l2.Entry(0).PageTable()
	if err != nil {
		t.Fatalf("L2 PageTable failed: %v", err)
	}
	if l1.Level() != L1 {
		t.Fatalf("table level = %v, want %v", l1.Level(), L1)
	}
	if _, err := l1.Entry(1).PageTable(); err != GetTableIsL1 {
		t.Errorf("L1 PageTable = %v, want %v", err, GetTableIsL1)
	}
	owned, _ := tt.mem.AllocateFrame()
	if _, err := l1.Entry(2).SetPageTable(owned); err != SetTableIsL1 {
		t.Errorf("L1 SetPageTable = %v, want %v", err, SetTableIsL1)
	}
	if _, err := l1.Entry(2).UnmapFrame(); err != UnmapFrameNotPresent {
		t.Errorf("empty L1 UnmapFrame = %v, want %v", err, UnmapFrameNotPresent)
	}
	if err := l1.Entry(2).SetFlags(rwNX); err != SetFlagsNotPresent {
		t.Errorf("empty L1 SetFlags = %v, want %v", err, SetFlagsNotPresent)
	}
	if !l1.Entry(2).IsEmpty() || l1.Entry(1).IsEmpty() {
		t.Errorf("IsEmpty does not match the mapping at index 1")
	}
}

func TestManagedErrors(t *testing.T) {
	tt := newTestTables(t, User)
	huge := page(0x20_0000, hostarch.PageSize2MiB)
	if err := tt.table.MapPage(huge, frame(0x20_0000, hostarch.PageSize2MiB), rwNX, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}
	small := page(0x4000, hostarch.PageSize4KiB)
	if err := tt.table.MapPage(small, frame(0x4000, hostarch.PageSize4KiB), rwNX, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}

	for _, tc := range []struct {
		name  string
		fn    func() error
		want  error
		level Level
	}{
		{
			name: "map 4KiB inside a 2MiB mapping",
			fn: func() error {
				return tt.table.MapPage(page(0x20_1000, hostarch.PageSize4KiB), frame(0x1000, hostarch.PageSize4KiB), rwNX, tt.mem)
			},
			want:  GetTableMappedToFrame,
			level: L2,
		},
		{
			name: "map with mismatched frame size",
			fn: func() error {
				return tt.table.MapPage(page(0x8000, hostarch.PageSize4KiB), frame(0x20_0000, hostarch.PageSize2MiB), rwNX, tt.mem)
			},
			want:  SetFrameNotAllowed,
			level: L1,
		},
		{
			name: "unmap where nothing is mapped",
			fn: func() error {
				_, err := tt.table.UnmapPage(page(0x4000_0000, hostarch.PageSize4KiB))
				return err
			},
			want:  GetTableNotMapped,
			level: L3,
		},
		{
			name: "unmap a table as a 2MiB page",
			fn: func() error {
				_, err := tt.table.UnmapPage(page(0, hostarch.PageSize2MiB))
				return err
			},
			want:  UnmapFrameIsPageTable,
			level: L2,
		},
		{
			name: "update flags of a table as a 2MiB page",
			fn: func() error {
				return tt.table.UpdateFlags(page(0, hostarch.PageSize2MiB), rx)
			},
			want:  SetFlagsIsPageTable,
			level: L2,
		},
		{
			name: "update flags of an unmapped page",
			fn: func() error {
				return tt.table.UpdateFlags(page(0x5000, hostarch.PageSize4KiB), rx)
			},
			want:  SetFlagsNotPresent,
			level: L1,
		},
		{
			name: "update flags below a 2MiB mapping",
			fn: func() error {
				return tt.table.UpdateFlags(page(0x20_1000, hostarch.PageSize4KiB), rx)
			},
			want:  GetTableMappedToFrame,
			level: L2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			var level Level
			var mpe *MapPageError
			var upe *UnmapPageError
			var ufe *UpdateFlagsError
			switch {
			case errors.As(err, &mpe):
				level = mpe.Level
			case errors.As(err, &upe):
				level = upe.Level
			case errors.As(err, &ufe):
				level = ufe.Level
			default:
				t.Fatalf("error %v is not wrapped in an operation error", err)
			}
			if level != tc.level {
				t.Errorf("failing level = %v, want %v", level, tc.level)
			}
		})
	}
	if got := tt.tlb.Invalidated(); len(got) != 0 {
		t.Errorf("failed operations invalidated %v", got)
	}
}

func TestFrameAllocationFailed(t *testing.T) {
	mem := newTestMemory(t, 3)
	root, _ := mem.AllocateFrame()
	fs := make(cpuid.Static).ToFeatureSet()
	table := NewUser(root, NewConfig(pat.Managed(), mem.offset()).WithFeatures(&fs))

	// One frame is left: enough for the L3 table only.
	err := table.MapPage(page(0x1000, hostarch.PageSize4KiB), frame(0x1000, hostarch.PageSize4KiB), rwNX, mem)
	if !errors.Is(err, ErrFrameAllocationFailed) {
		t.Fatalf("MapPage = %v, want %v", err, ErrFrameAllocationFailed)
	}
	var mpe *MapPageError
	if !errors.As(err, &mpe) || mpe.Level != L3 {
		t.Errorf("MapPage error = %v, want a MapPageError at L3", err)
	}
	if got := mem.allocated(); got != 2 {
		t.Errorf("allocated %d frames, want 2", got)
	}

	// A 1GiB mapping needs no table below L3.
	with := make(cpuid.Static).Add(cpuid.X86FeatureGBPAGES).ToFeatureSet()
	config := table.Config().WithFeatures(&with)
	table = NewUser(table.Release(), config)
	if err := table.MapPage(page(0x4000_0000, hostarch.PageSize1GiB), frame(0, hostarch.PageSize1GiB), rwNX, mem); err != nil {
		t.Errorf("1GiB MapPage failed: %v", err)
	}
}

func TestPATMissPanics(t *testing.T) {
	mem := newTestMemory(t, 8)
	root, _ := mem.AllocateFrame()
	fs := make(cpuid.Static).ToFeatureSet()
	table := NewUser(root, NewConfig(pat.Default(), mem.offset()).WithFeatures(&fs))

	wc := ConfigurableFlags{MemoryType: hostarch.MemoryTypeWriteCombine}
	expectPanic(t, "MapPage with a memory type missing from the PAT", func() {
		table.MapPage(page(0x1000, hostarch.PageSize4KiB), frame(0x1000, hostarch.PageSize4KiB), wc, mem)
	})
}

func TestShareKernelHalf(t *testing.T) {
	kt := newTestTables(t, Kernel)
	kernel := kt.table
	before := page(kernelBase, hostarch.PageSize4KiB)
	if err := kernel.MapPage(before, frame(0x1000, hostarch.PageSize4KiB), rx, kt.mem); err != nil {
		t.Fatalf("kernel MapPage failed: %v", err)
	}

	root, _ := kt.mem.AllocateFrame()
	user := NewUser(root, kernel.Config())
	user.ShareKernelHalf(kernel)

	if _, err := user.Translate(before.Start()); err != nil {
		t.Errorf("user Translate(%v) failed: %v", before.Start(), err)
	}

	// The L3 tables are shared, so later kernel mappings are visible too.
	after := page(kernelBase+0x7f_c000_0000, hostarch.PageSize2MiB)
	if err := kernel.MapPage(after, frame(0x20_0000, hostarch.PageSize2MiB), rx, kt.mem); err != nil {
		t.Fatalf("kernel MapPage failed: %v", err)
	}
	m, err := user.Translate(after.Start())
	if err != nil {
		t.Fatalf("user Translate(%v) failed: %v", after.Start(), err)
	}
	if m.Flags.Contains(pte.UserAccessible) {
		t.Errorf("kernel mapping is user accessible: %v", m.Flags)
	}

	// User mappings stay out of the kernel.
	own := page(0x1000, hostarch.PageSize4KiB)
	if err := user.MapPage(own, frame(0x3000, hostarch.PageSize4KiB), rwNX, kt.mem); err != nil {
		t.Fatalf("user MapPage failed: %v", err)
	}
	if _, err := kernel.Translate(own.Start()); !errors.Is(err, ErrNotMapped) {
		t.Errorf("kernel Translate(%v) = %v, want %v", own.Start(), err, ErrNotMapped)
	}

	expectPanic(t, "ShareKernelHalf into a kernel table", func() { kernel.ShareKernelHalf(kernel) })
}

func TestWalk(t *testing.T) {
	tt := newTestTables(t, User, cpuid.X86FeatureGBPAGES)
	want := []hostarch.Page{
		page(0x1000, hostarch.PageSize4KiB),
		page(0x20_0000, hostarch.PageSize2MiB),
		page(0x4000_0000, hostarch.PageSize1GiB),
		page(0x7fff_ffff_f000, hostarch.PageSize4KiB),
	}
	// Map in reverse to show that Walk orders by address.
	for i := len(want) - 1; i >= 0; i-- {
		p := want[i]
		f := frame(hostarch.PhysAddr(p.Size().Bytes()), p.Size())
		if err := tt.table.MapPage(p, f, rwNX, tt.mem); err != nil {
			t.Fatalf("MapPage(%v) failed: %v", p, err)
		}
	}

	var got []hostarch.Page
	tt.table.Walk(func(p hostarch.Page, m Mapping) bool {
		got = append(got, p)
		return true
	})
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(hostarch.Page{})); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}

	n := 0
	tt.table.Walk(func(hostarch.Page, Mapping) bool {
		n++
		return false
	})
	if n != 1 {
		t.Errorf("Walk visited %d mappings after a false return, want 1", n)
	}
}

func TestWalkKernel(t *testing.T) {
	tt := newTestTables(t, Kernel)
	p := page(kernelBase+0x20_0000, hostarch.PageSize2MiB)
	if err := tt.table.MapPage(p, frame(0, hostarch.PageSize2MiB), rx, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}
	var got []hostarch.Page
	tt.table.Walk(func(p hostarch.Page, _ Mapping) bool {
		got = append(got, p)
		return true
	})
	if diff := cmp.Diff([]hostarch.Page{p}, got, cmp.AllowUnexported(hostarch.Page{})); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateNonCanonical(t *testing.T) {
	tt := newTestTables(t, User)
	if _, err := tt.table.Translate(0x0000_8000_0000_0000); !errors.Is(err, ErrNotMapped) {
		t.Errorf("Translate(non-canonical) = %v, want %v", err, ErrNotMapped)
	}
}

func TestNonCanonicalPageCannotAlias(t *testing.T) {
	tt := newTestTables(t, User)
	before := tt.mem.allocated()

	// Bits 48 and up are dropped by the table indices, so this address would
	// land on page 0.
	alias := hostarch.Addr(0x1_0000_0000_0000)
	if L4.Index(alias) != 0 || L1.Index(alias) != 0 {
		t.Fatalf("%v does not index like address 0", alias)
	}
	if p, err := hostarch.NewPage(alias, hostarch.PageSize4KiB); !errors.Is(err, hostarch.ErrNotCanonical) {
		t.Fatalf("NewPage(%v) = %v, %v, want %v", alias, p, err, hostarch.ErrNotCanonical)
	}

	if _, err := tt.table.Translate(0); !errors.Is(err, ErrNotMapped) {
		t.Errorf("Translate(0) = %v, want %v", err, ErrNotMapped)
	}
	if got := tt.mem.allocated(); got != before {
		t.Errorf("allocated %d frames, want %d", got, before)
	}
	f := frame(0x2000, hostarch.PageSize4KiB)
	if err := tt.table.MapPage(page(0, hostarch.PageSize4KiB), f, rwNX, tt.mem); err != nil {
		t.Errorf("MapPage at 0 failed: %v", err)
	}
}

func TestWidestFrames(t *testing.T) {
	if f, err := hostarch.NewFrame(1<<hostarch.PhysAddrBits, hostarch.PageSize4KiB); !errors.Is(err, hostarch.ErrPhysAddrTooWide) {
		t.Fatalf("NewFrame(1<<52) = %v, %v, want %v", f, err, hostarch.ErrPhysAddrTooWide)
	}

	const top = hostarch.PhysAddr(1 << hostarch.PhysAddrBits)
	tt := newTestTables(t, User, cpuid.X86FeatureGBPAGES)
	for _, size := range []hostarch.PageSize{hostarch.PageSize4KiB, hostarch.PageSize2MiB, hostarch.PageSize1GiB} {
		t.Run(size.String(), func(t *testing.T) {
			p := page(hostarch.Addr(4*size.Bytes()), size)
			f := frame(top-hostarch.PhysAddr(size.Bytes()), size)
			if err := tt.table.MapPage(p, f, rwNX, tt.mem); err != nil {
				t.Fatalf("MapPage(%v, %v) failed: %v", p, f, err)
			}
			m, err := tt.table.Translate(p.Start())
			if err != nil {
				t.Fatalf("Translate failed: %v", err)
			}
			if m.Frame != f {
				t.Errorf("Translate frame = %v, want %v", m.Frame, f)
			}
			if got, err := tt.table.UnmapPage(p); err != nil || got != f {
				t.Errorf("UnmapPage = %v, %v, want %v, nil", got, err, f)
			}
		})
	}
}

func TestSmallPageHighPATBit(t *testing.T) {
	// WC and WP live in PAT slots 4 and 5, so a 4 KiB leaf carries bit 7,
	// the position HugePage occupies at L2 and L3.
	tt := newTestTables(t, User)
	p := page(0x40_0000, hostarch.PageSize4KiB)
	f := frame(0x9000, hostarch.PageSize4KiB)
	wc := ConfigurableFlags{Writable: true, MemoryType: hostarch.MemoryTypeWriteCombine}
	if err := tt.table.MapPage(p, f, wc, tt.mem); err != nil {
		t.Fatalf("MapPage failed: %v", err)
	}

	check := func(want hostarch.MemoryType, wantHighBit bool) {
		t.Helper()
		m, err := tt.table.Translate(p.Start())
		if err != nil {
			t.Fatalf("Translate failed: %v", err)
		}
		if m.Level != L1 || m.Frame != f {
			t.Errorf("Translate = %v, want %v at %v", m, f, L1)
		}
		if got := m.Flags.Contains(pte.PAT4KiB); got != wantHighBit {
			t.Errorf("flags %v: PAT4KiB set = %v, want %v", m.Flags, got, wantHighBit)
		}
		if got := pat.Managed().Decode(m.Flags, hostarch.PageSize4KiB); got != want {
			t.Errorf("memory type = %v, want %v", got, want)
		}
	}
	check(hostarch.MemoryTypeWriteCombine, true)

	// The L2 entry above is still a table: a neighbour maps into the same L1.
	next := page(0x40_1000, hostarch.PageSize4KiB)
	if err := tt.table.MapPage(next, frame(0xa000, hostarch.PageSize4KiB), rwNX, tt.mem); err != nil {
		t.Fatalf("MapPage of the neighbouring page failed: %v", err)
	}

	wp := ConfigurableFlags{MemoryType: hostarch.MemoryTypeWriteProtect}
	if err := tt.table.UpdateFlags(p, wp); err != nil {
		t.Fatalf("UpdateFlags(WP) failed: %v", err)
	}
	check(hostarch.MemoryTypeWriteProtect, true)

	if err := tt.table.UpdateFlags(p, rwNX); err != nil {
		t.Fatalf("UpdateFlags(WB) failed: %v", err)
	}
	check(hostarch.MemoryTypeWriteBack, false)

	if err := tt.table.UpdateFlags(p, wc); err != nil {
		t.Fatalf("UpdateFlags(WC) failed: %v", err)
	}
	if got, err := tt.table.UnmapPage(p); err != nil || got != f {
		t.Errorf("UnmapPage = %v, %v, want %v, nil", got, err, f)
	}
	if _, err := tt.table.UnmapPage(p); !errors.Is(err, UnmapFrameNotPresent) {
		t.Errorf("second UnmapPage = %v, want %v", err, UnmapFrameNotPresent)
	}
}

func TestPopulateKernelHalf(t *testing.T) {
	tt := newTestTables(t, Kernel)
	// Root plus one L3 per higher-half slot.
	if got, want := tt.mem.allocated(), 1+pte.EntriesPerTable/2; got != want {
		t.Errorf("allocated %d frames, want %d", got, want)
	}
	// Populating again is a no-op.
	if err := PopulateKernelHalf(tt.table, tt.mem); err != nil {
		t.Fatalf("PopulateKernelHalf failed: %v", err)
	}
	if got, want := tt.mem.allocated(), 1+pte.EntriesPerTable/2; got != want {
		t.Errorf("allocated %d frames after repopulating, want %d", got, want)
	}

	user := newTestTables(t, User)
	expectPanic(t, "PopulateKernelHalf on a user table", func() { PopulateKernelHalf(user.table, user.mem) })
}

func TestRelease(t *testing.T) {
	tt := newTestTables(t, User)
	root := tt.table.Root()
	if got := tt.table.Release().Release(); got != root {
		t.Errorf("Release() = %v, want %v", got, root)
	}
}
