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

	"github.com/google/subcommands"
	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/pagetables"
	"gvisor.dev/l4paging/pkg/ring0"
)

// CPU implements subcommands.Command for the "cpu" command.
type CPU struct{}

// Name implements subcommands.Command.Name.
func (*CPU) Name() string {
	return "cpu"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*CPU) Synopsis() string {
	return "print the paging features of the host CPU"
}

// Usage implements subcommands.Command.Usage.
func (*CPU) Usage() string {
	return `cpu - print the paging features of the host CPU and the largest usable page size.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*CPU) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*CPU) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	fs := cpuid.HostFeatureSet()
	ring0.Init(&fs)
	printCPU(os.Stdout, fs)
	return subcommands.ExitSuccess
}

func printCPU(w io.Writer, fs cpuid.FeatureSet) {
	fmt.Fprintf(w, "features: %s\n", fs.FlagString())
	fmt.Fprintf(w, "max page size: %v\n", pagetables.MaxPageSize(&fs))
	fmt.Fprintf(w, "CR4 bits: %#x\n", ring0.CR4())
	fmt.Fprintf(w, "EFER bits: %#x\n", ring0.EFER())
}
