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

// UnmapPage removes the mapping of page, invalidates it in the local TLB
// and returns the frame it mapped.
//
// Intermediate tables are kept even when they become empty.
func (t *ManagedL4PageTable) UnmapPage(page hostarch.Page) (hostarch.Frame, error) {
	e, level, err := t.walk(page)
	if err != nil {
		return hostarch.Frame{}, &UnmapPageError{Page: page, Level: level, Err: err}
	}
	frame, err := e.UnmapFrame()
	if err != nil {
		return hostarch.Frame{}, &UnmapPageError{Page: page, Level: level, Err: err}
	}
	t.config.tlb.Invalidate(page.Start())
	return frame, nil
}
