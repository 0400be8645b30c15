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
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/l4paging/pkg/addrspace"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/log"
	"gvisor.dev/l4paging/pkg/pagetables"
	"gvisor.dev/l4paging/pkg/pat"
	"gvisor.dev/l4paging/pkg/physmem"
	"gvisor.dev/l4paging/pkg/ring0"
)

// Simulate implements subcommands.Command for the "simulate" command.
type Simulate struct {
	dump bool
}

// Name implements subcommands.Command.Name.
func (*Simulate) Name() string {
	return "simulate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Simulate) Synopsis() string {
	return "run a page table scenario against simulated physical memory"
}

// Usage implements subcommands.Command.Usage.
func (*Simulate) Usage() string {
	return `simulate [flags] <scenario.toml> - run the operations of a scenario file.

The scenario builds a kernel address space and one user address space that
shares its higher half, then applies each [[op]] in order.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Simulate) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&s.dump, "dump", true, "print the final mappings of both address spaces.")
}

// Execute implements subcommands.Command.Execute.
func (s *Simulate) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	sc, err := loadScenario(f.Arg(0))
	if err != nil {
		Fatalf("loading scenario: %v", err)
	}
	failures, err := runScenario(sc, os.Stdout, s.dump)
	if err != nil {
		Fatalf("running scenario: %v", err)
	}
	if failures > 0 {
		log.Warningf("%d operations did not behave as expected", failures)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// simulation is the state a scenario runs against.
type simulation struct {
	arena  *physmem.Arena
	tlb    *ring0.SoftTLB
	pat    pat.PAT
	kernel *addrspace.AddressSpace
	user   *addrspace.AddressSpace
}

func newSimulation(sc *scenario) (*simulation, error) {
	arena, err := physmem.New(uint64(sc.ArenaFrames) * hostarch.PageSizeBytes)
	if err != nil {
		return nil, err
	}
	p, err := sc.patLayout()
	if err != nil {
		arena.Close()
		return nil, err
	}
	fs, err := sc.featureSet()
	if err != nil {
		arena.Close()
		return nil, err
	}
	sim := &simulation{
		arena: arena,
		tlb:   &ring0.SoftTLB{},
		pat:   p,
	}
	config := pagetables.NewConfig(p, arena.Offset()).WithFeatures(&fs).WithTLB(sim.tlb)

	if sim.kernel, err = sim.newSpace(pagetables.Kernel, config); err != nil {
		arena.Close()
		return nil, err
	}
	if sim.user, err = sim.newSpace(pagetables.User, config); err != nil {
		arena.Close()
		return nil, err
	}
	sim.user.ShareKernel(sim.kernel)
	log.Infof("simulation: %d frames, PAT %v, CPU [%s], max page size %v",
		arena.Frames(), p, fs.FlagString(), config.MaxPageSize())
	return sim, nil
}

func (sim *simulation) newSpace(typ pagetables.L4Type, config *pagetables.Config) (*addrspace.AddressSpace, error) {
	root, ok := sim.arena.AllocateFrame()
	if !ok {
		return nil, fmt.Errorf("no frame for the %v root table", typ)
	}
	table := pagetables.NewUser(root, config)
	if typ == pagetables.Kernel {
		table = pagetables.NewKernel(root, config)
	}
	return addrspace.New(table, sim.arena)
}

func (sim *simulation) close() error {
	return sim.arena.Close()
}

// apply runs op and describes the outcome.
func (sim *simulation) apply(op *operation) (string, error) {
	as := sim.user
	if op.Space == "kernel" {
		as = sim.kernel
	}
	page, err := op.page()
	if err != nil {
		return "", err
	}
	flags, err := op.flags()
	if err != nil {
		return "", err
	}
	switch op.Kind {
	case "map":
		frame, err := op.frame()
		if err != nil {
			return "", err
		}
		if err := as.Map(page, frame, flags); err != nil {
			return "", err
		}
		return fmt.Sprintf("-> %v %v", frame, flags), nil
	case "unmap":
		frame, err := as.Unmap(page)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("was %v", frame), nil
	case "protect":
		if err := as.Protect(page, flags); err != nil {
			return "", err
		}
		return flags.String(), nil
	case "translate":
		m, err := as.Table().Translate(page.Start())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("-> %v [%v]", m.PhysAddr(page.Start()), m.Flags), nil
	default:
		return "", fmt.Errorf("unknown kind %q", op.Kind)
	}
}

// dump prints the mappings installed in table.
func (sim *simulation) dump(w io.Writer, name string, table *pagetables.ManagedL4PageTable) {
	fmt.Fprintf(w, "%s mappings:\n", name)
	n := 0
	table.Walk(func(p hostarch.Page, m pagetables.Mapping) bool {
		mt := sim.pat.Decode(m.Flags, m.Frame.Size())
		fmt.Fprintf(w, "  %v -> %v %s [%v]\n", p, m.Frame, mt.ShortString(), m.Flags)
		n++
		return true
	})
	if n == 0 {
		fmt.Fprintf(w, "  (none)\n")
	}
}

// runScenario runs every operation of sc, printing one line per operation
// to w. It returns the number of operations whose outcome differed from
// their expectation.
func runScenario(sc *scenario, w io.Writer, dump bool) (int, error) {
	sim, err := newSimulation(sc)
	if err != nil {
		return 0, err
	}
	defer sim.close()

	failures := 0
	for i := range sc.Ops {
		op := &sc.Ops[i]
		result, err := sim.apply(op)
		status := "ok"
		switch {
		case err != nil && op.Expect == "":
			status = "FAIL"
			result = err.Error()
		case err != nil && !strings.Contains(err.Error(), op.Expect):
			status = "FAIL"
			result = fmt.Sprintf("%v, want %q", err, op.Expect)
		case err != nil:
			result = fmt.Sprintf("error as expected: %v", err)
		case op.Expect != "":
			status = "FAIL"
			result = fmt.Sprintf("%s, want error %q", result, op.Expect)
		}
		if status != "ok" {
			failures++
		}
		fmt.Fprintf(w, "%3d %-4s %-9s %-6s %#x/%s %s\n", i, status, op.Kind, op.Space, op.Addr, op.Size, result)
	}

	if dump {
		sim.dump(w, "kernel", sim.kernel.Table())
		sim.dump(w, "user", sim.user.Table())
	}
	fmt.Fprintf(w, "TLB invalidations: %d\n", len(sim.tlb.Invalidated()))
	fmt.Fprintf(w, "free frames: %d of %d\n", sim.arena.FreeFrames(), sim.arena.Frames()-1)
	return failures, nil
}
