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

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pagetables"
	"gvisor.dev/l4paging/pkg/pat"
)

// scenario is a simulation described in a TOML file.
type scenario struct {
	// ArenaFrames is the number of 4 KiB frames of simulated physical
	// memory, including the reserved frame 0.
	ArenaFrames int `toml:"arena_frames"`

	// HostFeatures uses the CPU features of the host. Otherwise only
	// Features are present.
	HostFeatures bool `toml:"host_features"`

	// Features lists CPU features by /proc/cpuinfo name, e.g. "pdpe1gb".
	Features []string `toml:"features"`

	// PAT is the PAT layout: "managed" or "default".
	PAT string `toml:"pat"`

	// Ops run in order.
	Ops []operation `toml:"op"`
}

// operation is one step of a scenario.
type operation struct {
	// Kind is "map", "unmap", "protect" or "translate".
	Kind string `toml:"kind"`

	// Space is "user" (the default) or "kernel".
	Space string `toml:"space"`

	// Addr is the virtual address of the page.
	Addr address `toml:"addr"`

	// Size is the page size: "4KiB" (the default), "2MiB" or "1GiB".
	Size string `toml:"size"`

	// Frame is the physical address to map, for "map".
	Frame address `toml:"frame"`

	// Writable, Executable and MemoryType are the flags for "map" and
	// "protect". MemoryType defaults to WB.
	Writable   bool   `toml:"writable"`
	Executable bool   `toml:"executable"`
	MemoryType string `toml:"memory_type"`

	// Expect is the expected error text. Empty means success.
	Expect string `toml:"expect"`
}

const defaultArenaFrames = 1024

// address is a 64-bit address. TOML integers are signed, so addresses in the
// higher half must be written as strings, e.g. "0xffff800000000000".
type address uint64

// UnmarshalTOML implements toml.Unmarshaler.
func (a *address) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("negative address %d", v)
		}
		*a = address(v)
		return nil
	case string:
		u, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", v, err)
		}
		*a = address(u)
		return nil
	default:
		return fmt.Errorf("invalid address %v of type %T", data, data)
	}
}

// loadScenario loads a scenario from a TOML file.
func loadScenario(path string) (*scenario, error) {
	var s scenario
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// decodeScenario parses a scenario from TOML text.
func decodeScenario(text string) (*scenario, error) {
	var s scenario
	if _, err := toml.Decode(text, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *scenario) validate() error {
	if s.ArenaFrames == 0 {
		s.ArenaFrames = defaultArenaFrames
	}
	if _, err := s.patLayout(); err != nil {
		return err
	}
	if _, err := s.featureSet(); err != nil {
		return err
	}
	for i := range s.Ops {
		op := &s.Ops[i]
		switch op.Kind {
		case "map", "unmap", "protect", "translate":
		default:
			return fmt.Errorf("op %d: unknown kind %q", i, op.Kind)
		}
		if op.Space == "" {
			op.Space = "user"
		}
		if op.Space != "user" && op.Space != "kernel" {
			return fmt.Errorf("op %d: unknown space %q", i, op.Space)
		}
		typ := pagetables.User
		if op.Space == "kernel" {
			typ = pagetables.Kernel
		}
		if first, end := typ.ManagedRange(); op.Kind != "translate" && !inL4Range(hostarch.Addr(op.Addr), first, end) {
			return fmt.Errorf("op %d: %#x is outside the %v half", i, uint64(op.Addr), typ)
		}
		if op.Size == "" {
			op.Size = "4KiB"
		}
		if op.MemoryType == "" {
			op.MemoryType = "WB"
		}
		if _, err := op.page(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		if _, err := op.flags(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		if op.Kind == "map" {
			if _, err := op.frame(); err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
		}
	}
	return nil
}

// inL4Range returns true if addr is translated through an L4 entry in
// [first, end).
func inL4Range(addr hostarch.Addr, first, end int) bool {
	i := pagetables.L4.Index(addr)
	return i >= first && i < end
}

func (s *scenario) patLayout() (pat.PAT, error) {
	switch s.PAT {
	case "", "managed":
		return pat.Managed(), nil
	case "default":
		return pat.Default(), nil
	default:
		return pat.PAT{}, fmt.Errorf("unknown PAT layout %q", s.PAT)
	}
}

func (s *scenario) featureSet() (cpuid.FeatureSet, error) {
	st := make(cpuid.Static)
	if s.HostFeatures {
		st = cpuid.HostFeatureSet().ToStatic()
	}
	for _, name := range s.Features {
		f, ok := cpuid.FeatureFromString(name)
		if !ok {
			return cpuid.FeatureSet{}, fmt.Errorf("unknown CPU feature %q", name)
		}
		st.Add(f)
	}
	return st.ToFeatureSet(), nil
}

func (op *operation) page() (hostarch.Page, error) {
	size, err := hostarch.ParsePageSize(op.Size)
	if err != nil {
		return hostarch.Page{}, err
	}
	return hostarch.NewPage(hostarch.Addr(op.Addr), size)
}

func (op *operation) frame() (hostarch.Frame, error) {
	size, err := hostarch.ParsePageSize(op.Size)
	if err != nil {
		return hostarch.Frame{}, err
	}
	return hostarch.NewFrame(hostarch.PhysAddr(op.Frame), size)
}

func (op *operation) flags() (pagetables.ConfigurableFlags, error) {
	mt, err := hostarch.ParseMemoryType(op.MemoryType)
	if err != nil {
		return pagetables.ConfigurableFlags{}, err
	}
	return pagetables.ConfigurableFlags{
		Writable:   op.Writable,
		Executable: op.Executable,
		MemoryType: mt,
	}, nil
}
