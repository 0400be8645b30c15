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
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/pagetables"
	"gvisor.dev/l4paging/pkg/pat"
	"gvisor.dev/l4paging/pkg/pte"
)

// Decode implements subcommands.Command for the "decode" command.
type Decode struct {
	level  int
	layout string
}

// Name implements subcommands.Command.Name.
func (*Decode) Name() string {
	return "decode"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Decode) Synopsis() string {
	return "decode raw page table entries"
}

// Usage implements subcommands.Command.Usage.
func (*Decode) Usage() string {
	return `decode [flags] <entry>... - print the address, flags and memory type of each entry.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Decode) SetFlags(f *flag.FlagSet) {
	f.IntVar(&d.level, "level", 1, "level of the table holding the entries, 1 through 4.")
	f.StringVar(&d.layout, "pat", "managed", "PAT layout used to decode memory types: managed or default.")
}

// Execute implements subcommands.Command.Execute.
func (d *Decode) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	sc := scenario{PAT: d.layout}
	p, err := sc.patLayout()
	if err != nil {
		Fatalf("%v", err)
	}
	if d.level < int(pagetables.L1) || d.level > int(pagetables.L4) {
		Fatalf("invalid level %d", d.level)
	}
	for _, arg := range f.Args() {
		v, err := strconv.ParseUint(strings.ReplaceAll(arg, "_", ""), 0, 64)
		if err != nil {
			Fatalf("invalid entry %q: %v", arg, err)
		}
		decodeEntry(os.Stdout, pte.Entry(v), pagetables.Level(d.level), p)
	}
	return subcommands.ExitSuccess
}

// decodeEntry describes e as an entry of a table at level l.
func decodeEntry(w io.Writer, e pte.Entry, l pagetables.Level, p pat.PAT) {
	switch {
	case e.IsUnused():
		fmt.Fprintf(w, "%#016x %v: unused\n", e.Load(), l)
	case !e.Valid():
		fmt.Fprintf(w, "%#016x %v: not present\n", e.Load(), l)
	case l == pagetables.L1 || (l != pagetables.L4 && e.IsHuge()):
		size, _ := l.TargetFrameSize()
		addr := e.Load() & pte.AddressMask(size.Shift())
		flags := e.LeafFlags(size.Shift())
		fmt.Fprintf(w, "%#016x %v: %v frame %#x %s [%v]\n", e.Load(), l, size, addr, p.Decode(flags, size).ShortString(), flags)
	default:
		sub, _ := l.SubLevel()
		fmt.Fprintf(w, "%#016x %v: %v table %#x [%v]\n", e.Load(), l, sub, e.Address(), e.Flags())
	}
}

// PAT implements subcommands.Command for the "pat" command.
type PAT struct {
	msr string
}

// Name implements subcommands.Command.Name.
func (*PAT) Name() string {
	return "pat"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*PAT) Synopsis() string {
	return "print page attribute table layouts"
}

// Usage implements subcommands.Command.Usage.
func (*PAT) Usage() string {
	return `pat [flags] - print the managed and default PAT layouts, or decode an MSR value.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *PAT) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.msr, "msr", "", "decode this IA32_PAT value instead of printing the built-in layouts.")
}

// Execute implements subcommands.Command.Execute.
func (p *PAT) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if p.msr != "" {
		v, err := strconv.ParseUint(p.msr, 0, 64)
		if err != nil {
			Fatalf("invalid MSR value %q: %v", p.msr, err)
		}
		layout, err := pat.FromMSR(v)
		if err != nil {
			Fatalf("%v", err)
		}
		printPAT(os.Stdout, "msr", layout)
		return subcommands.ExitSuccess
	}
	printPAT(os.Stdout, "managed", pat.Managed())
	printPAT(os.Stdout, "default", pat.Default())
	return subcommands.ExitSuccess
}

func printPAT(w io.Writer, name string, p pat.PAT) {
	fmt.Fprintf(w, "%s: %v (MSR %#016x)\n", name, p, p.MSR())
	for i := 0; i < pat.NumSlots; i++ {
		mt := p.Slot(i)
		small, err := p.FlagsFor(mt, hostarch.PageSize4KiB)
		if err != nil {
			continue
		}
		huge, _ := p.FlagsFor(mt, hostarch.PageSize2MiB)
		fmt.Fprintf(w, "  slot %d: %-3s 4K [%v] huge [%v]\n", i, mt.ShortString(), small, huge)
	}
}
