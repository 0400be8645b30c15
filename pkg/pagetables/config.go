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

// Package pagetables manages x86-64 4-level page tables.
//
// A ManagedL4PageTable owns the root of one hierarchy and installs, removes
// and re-protects leaf mappings of 4 KiB, 2 MiB and 1 GiB. The hierarchy is
// walked with short-lived LevelTable and LevelEntry handles that know their
// level and refuse operations the hardware format does not allow there.
//
// Tables are reached through a VirtualOffset: all physical memory must be
// mapped contiguously at that offset before any table is touched.
//
// Nothing in this package takes locks. Callers serialize every mutating
// call on a given table; mutations below a Kernel table are visible to every
// address space that shares its entries and must be serialized globally.
package pagetables

import (
	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pte"
	"gvisor.dev/l4paging/pkg/ring0"
)

// PAT maps a memory type to the PAT selection bits of a leaf entry mapping
// a frame of the given size.
//
// pat.PAT implements PAT.
type PAT interface {
	FlagsFor(mt hostarch.MemoryType, size hostarch.PageSize) (pte.Flags, error)
}

// TLB invalidates cached translations on the current CPU.
//
// ring0.LocalTLB implements TLB.
type TLB interface {
	Invalidate(addr hostarch.Addr)
}

// Config is the paging configuration shared by every table operation.
//
// A Config is immutable once built.
type Config struct {
	offset   VirtualOffset
	pat      PAT
	features *cpuid.FeatureSet
	tlb      TLB
}

// NewConfig returns a Config for tables reachable through offset, with leaf
// caching bits taken from p.
//
// CPU features are those of the host and TLB invalidation uses invlpg; see
// WithFeatures and WithTLB.
func NewConfig(p PAT, offset VirtualOffset) *Config {
	fs := cpuid.HostFeatureSet()
	return &Config{
		offset:   offset,
		pat:      p,
		features: &fs,
		tlb:      ring0.LocalTLB{},
	}
}

// WithFeatures returns a copy of c that consults fs for CPU features.
func (c *Config) WithFeatures(fs *cpuid.FeatureSet) *Config {
	nc := *c
	nc.features = fs
	return &nc
}

// WithTLB returns a copy of c that invalidates translations through tlb.
func (c *Config) WithTLB(tlb TLB) *Config {
	nc := *c
	nc.tlb = tlb
	return &nc
}

// Offset returns the virtual offset.
func (c *Config) Offset() VirtualOffset {
	return c.offset
}

// PAT returns the PAT handle.
func (c *Config) PAT() PAT {
	return c.pat
}

// Features returns the CPU feature set.
func (c *Config) Features() *cpuid.FeatureSet {
	return c.features
}

// MaxPageSize returns the largest page size the configured CPU can map.
func (c *Config) MaxPageSize() hostarch.PageSize {
	return MaxPageSize(c.features)
}
