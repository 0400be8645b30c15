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
	"errors"
	"fmt"

	"gvisor.dev/l4paging/pkg/hostarch"
)

var (
	// ErrFrameAllocationFailed is returned when the allocator has no frame
	// for a new intermediate table.
	ErrFrameAllocationFailed = errors.New("frame allocation failed")

	// ErrNotMapped is returned by Translate for an address with no mapping.
	ErrNotMapped = errors.New("address is not mapped")
)

// GetTableError is returned by LevelEntry.PageTable.
type GetTableError int

// GetTableError values.
const (
	// GetTableIsL1 means the entry is at L1 and cannot reference a table.
	GetTableIsL1 GetTableError = iota + 1

	// GetTableNotMapped means the entry is empty.
	GetTableNotMapped

	// GetTableMappedToFrame means the entry maps a huge frame.
	GetTableMappedToFrame
)

// Error implements error.Error.
func (e GetTableError) Error() string {
	switch e {
	case GetTableIsL1:
		return "L1 entries do not reference tables"
	case GetTableNotMapped:
		return "entry is not mapped"
	case GetTableMappedToFrame:
		return "entry maps a frame"
	default:
		return fmt.Sprintf("GetTableError(%d)", int(e))
	}
}

// SetTableError is returned by LevelEntry.SetPageTable.
type SetTableError int

// SetTableError values.
const (
	// SetTableIsL1 means the entry is at L1 and cannot reference a table.
	SetTableIsL1 SetTableError = iota + 1
)

// Error implements error.Error.
func (e SetTableError) Error() string {
	switch e {
	case SetTableIsL1:
		return "L1 entries cannot reference tables"
	default:
		return fmt.Sprintf("SetTableError(%d)", int(e))
	}
}

// SetFrameError is returned by LevelEntry.SetFrame.
type SetFrameError int

// SetFrameError values.
const (
	// SetFrameNotAllowed means the frame size does not match the level, or
	// the entry is at L4.
	SetFrameNotAllowed SetFrameError = iota + 1

	// SetFrameSizeNotSupported means the CPU cannot map frames of this size.
	SetFrameSizeNotSupported

	// SetFrameAlreadyMapped means the entry is not empty.
	SetFrameAlreadyMapped
)

// Error implements error.Error.
func (e SetFrameError) Error() string {
	switch e {
	case SetFrameNotAllowed:
		return "frame size not allowed at this level"
	case SetFrameSizeNotSupported:
		return "page size not supported"
	case SetFrameAlreadyMapped:
		return "entry is already mapped"
	default:
		return fmt.Sprintf("SetFrameError(%d)", int(e))
	}
}

// UnmapFrameError is returned by LevelEntry.UnmapFrame.
type UnmapFrameError int

// UnmapFrameError values.
const (
	// UnmapFrameIsL4 means the entry is at L4, which never maps frames.
	UnmapFrameIsL4 UnmapFrameError = iota + 1

	// UnmapFrameNotPresent means the entry is not present.
	UnmapFrameNotPresent

	// UnmapFrameIsPageTable means the entry references a table.
	UnmapFrameIsPageTable
)

// Error implements error.Error.
func (e UnmapFrameError) Error() string {
	switch e {
	case UnmapFrameIsL4:
		return "L4 entries do not map frames"
	case UnmapFrameNotPresent:
		return "not present"
	case UnmapFrameIsPageTable:
		return "entry references a page table"
	default:
		return fmt.Sprintf("UnmapFrameError(%d)", int(e))
	}
}

// SetFlagsError is returned by LevelEntry.SetFlags.
type SetFlagsError int

// SetFlagsError values.
const (
	// SetFlagsIsL4 means the entry is at L4, which never maps frames.
	SetFlagsIsL4 SetFlagsError = iota + 1

	// SetFlagsNotPresent means the entry is not present.
	SetFlagsNotPresent

	// SetFlagsIsPageTable means the entry references a table.
	SetFlagsIsPageTable
)

// Error implements error.Error.
func (e SetFlagsError) Error() string {
	switch e {
	case SetFlagsIsL4:
		return "L4 entries do not map frames"
	case SetFlagsNotPresent:
		return "not present"
	case SetFlagsIsPageTable:
		return "entry references a page table"
	default:
		return fmt.Sprintf("SetFlagsError(%d)", int(e))
	}
}

// MapPageError is returned by MapPage. Err is ErrFrameAllocationFailed, a
// GetTableError, a SetTableError or a SetFrameError.
type MapPageError struct {
	Page  hostarch.Page
	Level Level
	Err   error
}

// Error implements error.Error.
func (e *MapPageError) Error() string {
	return fmt.Sprintf("map %v: %v: %v", e.Page, e.Level, e.Err)
}

// Unwrap returns the failing step.
func (e *MapPageError) Unwrap() error {
	return e.Err
}

// UnmapPageError is returned by UnmapPage. Err is a GetTableError or an
// UnmapFrameError.
type UnmapPageError struct {
	Page  hostarch.Page
	Level Level
	Err   error
}

// Error implements error.Error.
func (e *UnmapPageError) Error() string {
	return fmt.Sprintf("unmap %v: %v: %v", e.Page, e.Level, e.Err)
}

// Unwrap returns the failing step.
func (e *UnmapPageError) Unwrap() error {
	return e.Err
}

// UpdateFlagsError is returned by UpdateFlags. Err is a GetTableError or a
// SetFlagsError.
type UpdateFlagsError struct {
	Page  hostarch.Page
	Level Level
	Err   error
}

// Error implements error.Error.
func (e *UpdateFlagsError) Error() string {
	return fmt.Sprintf("update flags %v: %v: %v", e.Page, e.Level, e.Err)
}

// Unwrap returns the failing step.
func (e *UpdateFlagsError) Unwrap() error {
	return e.Err
}
