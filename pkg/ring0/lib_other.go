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

//go:build !amd64
// +build !amd64

package ring0

func invlpg(addr uintptr) {
	panic("ring0: invlpg is only available on amd64")
}

func readCR3() uintptr {
	panic("ring0: CR3 is only available on amd64")
}

func writeCR3(cr3 uintptr) {
	panic("ring0: CR3 is only available on amd64")
}

func wrmsr(reg, value uintptr) {
	panic("ring0: MSRs are only available on amd64")
}

func rdmsr(reg uintptr) uintptr {
	panic("ring0: MSRs are only available on amd64")
}
