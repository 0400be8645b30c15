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

// Package physmem provides a hosted stand-in for physical memory.
//
// An Arena is a block of anonymous memory. Physical address p of the arena
// lives at virtual address Base()+p, so page tables built in an arena are
// reachable through the VirtualOffset returned by Offset, exactly as a
// kernel reaches real tables through its direct map.
package physmem

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
	"gvisor.dev/l4paging/pkg/hostarch"
	"gvisor.dev/l4paging/pkg/log"
	"gvisor.dev/l4paging/pkg/pagetables"
	"gvisor.dev/l4paging/pkg/sync"
)

// ErrTooSmall is returned by New for an arena without room for a frame.
var ErrTooSmall = errors.New("arena must hold at least two frames")

// Arena is anonymous memory handed out as 4 KiB frames.
//
// Frame 0 is never allocated, so physical address 0 never appears in a
// table. Allocated frames are always zeroed.
//
// Arena implements pagetables.Allocator and is safe for concurrent use.
type Arena struct {
	// mem is the mapping. It is immutable until Close.
	mem []byte

	// base is the address of mem[0].
	base uintptr

	// warn reports exhaustion without flooding the log.
	warn log.Logger

	mu sync.Mutex

	// used tracks allocated frames. Protected by mu.
	used frameBitmap

	// next is where the search for a free frame starts. Protected by mu.
	next int
}

// New maps an arena of size bytes, rounded up to a whole frame.
func New(size uint64) (*Arena, error) {
	rounded, ok := hostarch.Addr(size).RoundUp(hostarch.PageSize4KiB)
	if !ok || uint64(rounded) < 2*hostarch.PageSizeBytes {
		return nil, fmt.Errorf("arena of %d bytes: %w", size, ErrTooSmall)
	}
	mem, err := unix.Mmap(-1, 0, int(rounded), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("mapping arena of %d bytes: %w", rounded, err)
	}
	frames := len(mem) / hostarch.PageSizeBytes
	a := &Arena{
		mem:  mem,
		base: baseOf(mem),
		warn: log.BasicRateLimitedLogger(time.Second),
		used: newFrameBitmap(frames),
		next: 1,
	}
	a.used.set(0)
	log.Debugf("physmem: arena of %d frames at %#x", frames, a.base)
	return a, nil
}

// Close unmaps the arena. Tables built in it must not be used afterwards.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}

// Base returns the virtual address of physical address 0.
func (a *Arena) Base() hostarch.Addr {
	return hostarch.Addr(a.base)
}

// Offset returns the VirtualOffset under which the arena is mapped.
func (a *Arena) Offset() pagetables.VirtualOffset {
	return pagetables.UnsafeVirtualOffset(uint64(a.base))
}

// Size returns the size of the arena in bytes.
func (a *Arena) Size() uint64 {
	return uint64(len(a.mem))
}

// Frames returns the number of frames in the arena, including frame 0.
func (a *Arena) Frames() int {
	return len(a.mem) / hostarch.PageSizeBytes
}

// FreeFrames returns the number of frames available for allocation.
func (a *Arena) FreeFrames() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mem == nil {
		return 0
	}
	return a.Frames() - a.used.used
}

// AllocateFrame implements pagetables.Allocator.AllocateFrame. It always
// fails once the arena is closed.
func (a *Arena) AllocateFrame() (pagetables.Owned4KiBFrame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mem == nil {
		return pagetables.Owned4KiBFrame{}, false
	}
	limit := a.Frames()
	i, ok := a.used.firstZero(a.next, limit)
	if !ok {
		// Wrap around to frames freed below the hint.
		if i, ok = a.used.firstZero(1, a.next); !ok {
			a.warn.Warningf("physmem: arena at %#x is out of frames (%d total)", a.base, limit)
			return pagetables.Owned4KiBFrame{}, false
		}
	}
	a.used.set(i)
	a.next = i + 1
	f := hostarch.MustNewFrame(hostarch.PhysAddr(i)*hostarch.PageSizeBytes, hostarch.PageSize4KiB)
	return pagetables.UnsafeOwned4KiBFrame(f), true
}

// Free returns f to the arena. Its contents are discarded.
func (a *Arena) Free(f pagetables.Owned4KiBFrame) {
	frame := f.Release()
	i := a.index(frame.Start())

	a.mu.Lock()
	defer a.mu.Unlock()
	if i == 0 || !a.used.isSet(i) {
		panic(fmt.Sprintf("physmem: free of unallocated frame %v", frame))
	}
	a.discard(i)
	a.used.clear(i)
}

// Allocated returns true iff the frame at addr is allocated.
func (a *Arena) Allocated(addr hostarch.PhysAddr) bool {
	i := a.index(addr.RoundDown(hostarch.PageSize4KiB))
	a.mu.Lock()
	defer a.mu.Unlock()
	return i != 0 && a.used.isSet(i)
}

// Bytes returns the contents of the frame at addr.
func (a *Arena) Bytes(addr hostarch.PhysAddr) []byte {
	i := a.index(addr)
	return a.mem[i*hostarch.PageSizeBytes : (i+1)*hostarch.PageSizeBytes]
}

// index returns the frame number of the 4 KiB aligned address addr.
func (a *Arena) index(addr hostarch.PhysAddr) int {
	if !addr.IsAligned(hostarch.PageSizeBytes) || uint64(addr) >= a.Size() {
		panic(fmt.Sprintf("physmem: %v is not a frame of the arena", addr))
	}
	return int(addr / hostarch.PageSizeBytes)
}

// discard zeroes frame i, returning its memory to the host when possible.
//
// Preconditions: a.mu is locked.
func (a *Arena) discard(i int) {
	b := a.mem[i*hostarch.PageSizeBytes : (i+1)*hostarch.PageSizeBytes]
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		clear(b)
	}
}
