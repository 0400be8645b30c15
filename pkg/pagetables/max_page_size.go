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
	"gvisor.dev/l4paging/pkg/cpuid"
	"gvisor.dev/l4paging/pkg/hostarch"
)

// MaxPageSize returns the largest page size fs can map: 1 GiB when the CPU
// has GBPAGES, otherwise 2 MiB.
func MaxPageSize(fs *cpuid.FeatureSet) hostarch.PageSize {
	if fs.HasFeature(cpuid.X86FeatureGBPAGES) {
		return hostarch.PageSize1GiB
	}
	return hostarch.PageSize2MiB
}
