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
	"fmt"

	"gvisor.dev/l4paging/pkg/hostarch"
)

// Owned4KiBFrame is a 4 KiB frame held by exactly one owner.
//
// Tables are built from owned frames so that no frame is ever installed as
// a table twice.
type Owned4KiBFrame struct {
	frame hostarch.Frame
}

// UnsafeOwned4KiBFrame asserts that the caller exclusively owns f, and that
// no other Owned4KiBFrame for f exists. f must be 4 KiB.
func UnsafeOwned4KiBFrame(f hostarch.Frame) Owned4KiBFrame {
	if f.Size() != hostarch.PageSize4KiB {
		panic(fmt.Sprintf("owned frame %v is not 4KiB", f))
	}
	return Owned4KiBFrame{frame: f}
}

// Frame returns the underlying frame without giving up ownership.
func (o Owned4KiBFrame) Frame() hostarch.Frame {
	return o.frame
}

// Start returns the physical address of the frame.
func (o Owned4KiBFrame) Start() hostarch.PhysAddr {
	return o.frame.Start()
}

// Release relinquishes ownership and returns the plain frame. The receiver
// must not be used afterwards.
func (o Owned4KiBFrame) Release() hostarch.Frame {
	return o.frame
}

// String implements fmt.Stringer.String.
func (o Owned4KiBFrame) String() string {
	return o.frame.String()
}

// Allocator supplies frames for new tables.
type Allocator interface {
	// AllocateFrame returns an unused frame, or false if none is available.
	AllocateFrame() (Owned4KiBFrame, bool)
}
