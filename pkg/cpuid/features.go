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

package cpuid

import "fmt"

// Feature is a unique identifier for a particular cpu feature.
type Feature int

const (
	basicFeatureInfo    = 0x1
	extendedFeatureInfo = 0x7
	extendedStart       = 0x80000000
	extendedFeatures    = extendedStart + 1
)

type register int

const (
	regEcx register = iota
	regEdx
)

// featureInfo locates a feature bit within CPUID output.
type featureInfo struct {
	name     string
	function uint32
	subleaf  uint32
	reg      register
	bit      uint32
}

// Features consulted by the paging code.
const (
	// X86FeaturePGE is support for global pages.
	X86FeaturePGE Feature = iota

	// X86FeaturePAT is support for the page attribute table.
	X86FeaturePAT

	// X86FeatureLA57 is support for 5-level paging.
	X86FeatureLA57

	// X86FeatureNX is support for the no-execute bit.
	X86FeatureNX

	// X86FeatureGBPAGES is support for 1 GiB pages.
	X86FeatureGBPAGES

	numFeatures
)

var features = [numFeatures]featureInfo{
	X86FeaturePGE:     {"pge", basicFeatureInfo, 0, regEdx, 13},
	X86FeaturePAT:     {"pat", basicFeatureInfo, 0, regEdx, 16},
	X86FeatureLA57:    {"la57", extendedFeatureInfo, 0, regEcx, 16},
	X86FeatureNX:      {"nx", extendedFeatures, 0, regEdx, 20},
	X86FeatureGBPAGES: {"pdpe1gb", extendedFeatures, 0, regEdx, 26},
}

var allFeatures = func() []Feature {
	fs := make([]Feature, numFeatures)
	for i := range fs {
		fs[i] = Feature(i)
	}
	return fs
}()

// String implements fmt.Stringer.String. It returns the /proc/cpuinfo name.
func (f Feature) String() string {
	if f < 0 || f >= numFeatures {
		return fmt.Sprintf("<cpuflag %d>", int(f))
	}
	return features[f].name
}

// FeatureFromString returns the Feature with the given /proc/cpuinfo name.
func FeatureFromString(s string) (Feature, bool) {
	for _, f := range allFeatures {
		if f.String() == s {
			return f, true
		}
	}
	return 0, false
}

func (f Feature) in() In {
	info := features[f]
	return In{Eax: info.function, Ecx: info.subleaf}
}

//go:nosplit
func (f Feature) check(fs FeatureSet) bool {
	info := features[f]
	if info.function >= extendedStart && fs.maxExtendedFunction() < info.function {
		return false
	}
	out := fs.Query(f.in())
	v := out.Ecx
	if info.reg == regEdx {
		v = out.Edx
	}
	return v&(1<<info.bit) != 0
}

func (f Feature) set(s Static, on bool) {
	info := features[f]
	if info.function >= extendedStart {
		max := In{Eax: extendedStart}
		if out := s[max]; out.Eax < info.function {
			out.Eax = info.function
			s[max] = out
		}
	}
	in := f.in()
	out := s[in]
	reg := &out.Ecx
	if info.reg == regEdx {
		reg = &out.Edx
	}
	if on {
		*reg |= 1 << info.bit
	} else {
		*reg &^= 1 << info.bit
	}
	s[in] = out
}
