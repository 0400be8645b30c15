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
	"gvisor.dev/l4paging/pkg/hostarch"
)

// MapPage maps page to frame, creating intermediate tables from alloc as
// needed.
//
// page and frame must have the same size, and the caller must not map a
// frame it does not own. A page that is already mapped fails with
// SetFrameAlreadyMapped and is left untouched.
func (t *ManagedL4PageTable) MapPage(page hostarch.Page, frame hostarch.Frame, flags ConfigurableFlags, alloc Allocator) error {
	target := levelFor(page.Size())
	table := t.L4()
	for table.level > target {
		next, err := table.Entry(table.level.Index(page.Start())).getOrCreate(alloc)
		if err != nil {
			return &MapPageError{Page: page, Level: table.level, Err: err}
		}
		table = next
	}
	if err := table.Entry(target.Index(page.Start())).SetFrame(frame, flags); err != nil {
		return &MapPageError{Page: page, Level: target, Err: err}
	}
	return nil
}

// getOrCreate returns the table referenced by e, allocating and installing
// one if e is empty.
func (e LevelEntry) getOrCreate(alloc Allocator) (LevelTable, error) {
	if !e.IsEmpty() {
		return e.PageTable()
	}
	frame, ok := alloc.AllocateFrame()
	if !ok {
		return LevelTable{}, ErrFrameAllocationFailed
	}
	return e.SetPageTable(frame)
}
