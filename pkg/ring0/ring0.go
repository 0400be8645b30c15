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

// Package ring0 holds the privileged CPU primitives used by the page table
// code: TLB invalidation, CR3 access and PAT programming.
//
// With the exception of SoftTLB, everything here executes privileged
// instructions and must only be called at CPL 0.
package ring0

import (
	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/log"
	"gvisor.dev/l4paging/pkg/pat"
)

// Control register and MSR bits.
const (
	_CR4_PAE = 1 << 5
	_CR4_PGE = 1 << 7

	_EFER_LME = 0x100
	_EFER_LMA = 0x400
	_EFER_NX  = 0x800

	_MSR_PAT = 0x277
)

// Mostly-constants set by Init.
var (
	hasPGE bool
	hasPAT bool
	hasNX  bool
)

// Init records the architectural features the primitives depend on.
//
// This must be called prior to CR4, EFER or LoadPAT.
func Init(featureSet *cpuid.FeatureSet) {
	hasPGE = featureSet.HasFeature(cpuid.X86FeaturePGE)
	hasPAT = featureSet.HasFeature(cpuid.X86FeaturePAT)
	hasNX = featureSet.HasFeature(cpuid.X86FeatureNX)
	if !hasPGE {
		log.Warningf("CPU lacks global pages; kernel mappings will be flushed on every CR3 load")
	}
}

// CR4 returns the paging related bits of CR4.
//
//go:nosplit
func CR4() uint64 {
	cr4 := uint64(_CR4_PAE)
	if hasPGE {
		cr4 |= _CR4_PGE
	}
	return cr4
}

// EFER returns the paging related bits of EFER.
//
//go:nosplit
func EFER() uint64 {
	efer := uint64(_EFER_LME | _EFER_LMA)
	if hasNX {
		efer |= _EFER_NX
	}
	return efer
}

// LoadPAT programs the IA32_PAT MSR of the current CPU with p. It returns
// false if the CPU has no PAT.
//
// The TLB must be flushed afterwards, see FlushAll.
func LoadPAT(p pat.PAT) bool {
	if !hasPAT {
		return false
	}
	wrmsr(_MSR_PAT, uintptr(p.MSR()))
	return true
}

// ReadPAT returns the layout currently programmed in IA32_PAT.
func ReadPAT() (pat.PAT, error) {
	return pat.FromMSR(uint64(rdmsr(_MSR_PAT)))
}

// ReadCR3 reads the current CR3 value.
//
//go:nosplit
func ReadCR3() uintptr {
	return readCR3()
}
