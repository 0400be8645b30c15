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

// Binary ptctl drives the page table manager against simulated physical
// memory and decodes page table state.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"gvisor.dev/l4paging/pkg/log"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging.")
	logFile   = flag.String("log", "", "file path where logs are written; %TIMESTAMP%, %COMMAND% and %PID% are expanded. Logs go to stderr if empty.")
	logFormat = flag.String("log-format", "text", "log format: text (default) or json.")
)

func main() {
	forEachCmd(subcommands.Register)
	flag.Parse()

	subcommand := flag.Arg(0)
	out := io.Writer(os.Stderr)
	if *logFile != "" {
		f, err := log.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, log.PatternOpts{Command: subcommand})
		if err != nil {
			Fatalf("%v", err)
		}
		out = f
	}
	log.SetTarget(newEmitter(*logFormat, out))
	if *debug {
		log.SetLevel(log.Debug)
	}
	log.Debugf("%s, %s/%s, PID %d, args: %v", runtime.Version(), runtime.GOOS, runtime.GOARCH, os.Getpid(), os.Args)

	status := subcommands.Execute(context.Background())
	if status != subcommands.ExitSuccess {
		log.Debugf("%s exited with status %d", subcommand, status)
	}
	os.Exit(int(status))
}

// forEachCmd invokes the passed callback for each command supported by ptctl.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const group = "page tables"
	cb(new(Simulate), group)
	cb(new(Decode), group)
	cb(new(PAT), group)
	cb(new(CPU), group)
}

func newEmitter(format string, w io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: w}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: w}}
	}
	Fatalf("invalid log format %q, must be 'text' or 'json'", format)
	panic("unreachable")
}

// Fatalf logs the same message to the log and stderr, and exits with a
// status that no command returns on its own.
func Fatalf(format string, args ...any) {
	log.Warningf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(128)
}
