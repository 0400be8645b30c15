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

//go:build amd64
// +build amd64

package cpuid

import "gvisor.dev/l4paging/pkg/sync"

// Native is a native Function.
//
// This implements Function.
type Native struct{}

// native is the native Query function, see cpuid_amd64.s.
func native(in In) (out Out)

// Query executes CPUID natively.
//
//go:nosplit
func (Native) Query(in In) Out {
	return native(in)
}

var hostFeatureSet = sync.OnceValue(func() FeatureSet {
	return FeatureSet{Function: Native{}}.Fixed()
})
