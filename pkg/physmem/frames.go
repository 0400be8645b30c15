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

package physmem

import (
	"math/bits"
)

// frameBitmap tracks which frames of an arena are in use.
type frameBitmap struct {
	// used is the number of set bits.
	used int

	// blocks holds the bits, 64 frames per block.
	blocks []uint64
}

func newFrameBitmap(frames int) frameBitmap {
	return frameBitmap{blocks: make([]uint64, (frames+63)/64)}
}

// isSet returns true iff frame i is in use.
func (b *frameBitmap) isSet(i int) bool {
	return b.blocks[i/64]&(1<<(i%64)) != 0
}

// set marks frame i used.
func (b *frameBitmap) set(i int) {
	block, mask := i/64, uint64(1)<<(i%64)
	if b.blocks[block]&mask == 0 {
		b.blocks[block] |= mask
		b.used++
	}
}

// clear marks frame i free.
func (b *frameBitmap) clear(i int) {
	block, mask := i/64, uint64(1)<<(i%64)
	if b.blocks[block]&mask != 0 {
		b.blocks[block] &^= mask
		b.used--
	}
}

// firstZero returns the first free frame in [start, limit), or false.
func (b *frameBitmap) firstZero(start, limit int) (int, bool) {
	if start >= limit {
		return 0, false
	}
	i, nbit := start/64, uint(start%64)
	w := b.blocks[i] | ((1 << nbit) - 1)
	for {
		if w != ^uint64(0) {
			if bit := i*64 + bits.TrailingZeros64(^w); bit < limit {
				return bit, true
			}
			return 0, false
		}
		i++
		if i == len(b.blocks) {
			return 0, false
		}
		w = b.blocks[i]
	}
}
