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

// Package hostarch describes the x86-64 address and page granularity types
// shared by the page table packages.
package hostarch

const (
	// PageShift is the binary log of the smallest page size.
	PageShift = 12

	// HugePageShift is the binary log of the 2 MiB page size.
	HugePageShift = 21

	// SuperPageShift is the binary log of the 1 GiB page size.
	SuperPageShift = 30

	// PageSizeBytes is the smallest page size in bytes.
	PageSizeBytes = 1 << PageShift

	// HugePageSizeBytes is the 2 MiB page size in bytes.
	HugePageSizeBytes = 1 << HugePageShift

	// SuperPageSizeBytes is the 1 GiB page size in bytes.
	SuperPageSizeBytes = 1 << SuperPageShift
)
