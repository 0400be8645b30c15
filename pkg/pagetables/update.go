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

// UpdateFlags replaces the flags of the mapping of page and invalidates it
// in the local TLB. The mapped frame is unchanged.
func (t *ManagedL4PageTable) UpdateFlags(page hostarch.Page, flags ConfigurableFlags) error {
	e, level, err := t.walk(page)
	if err != nil {
		return &UpdateFlagsError{Page: page, Level: level, Err: err}
	}
	if err := e.SetFlags(flags); err != nil {
		return &UpdateFlagsError{Page: page, Level: level, Err: err}
	}
	t.config.tlb.Invalidate(page.Start())
	return nil
}
