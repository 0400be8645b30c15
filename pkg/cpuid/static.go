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

// Static is a static CPUID function, used to snapshot the host or to
// describe a simulated CPU.
type Static map[In]Out

// ToStatic converts a FeatureSet to a Static function. Only the functions
// that hold the known features are saved.
//
// You can create a new static feature set as:
//
//	fs := otherFeatureSet.ToStatic().ToFeatureSet()
func (fs FeatureSet) ToStatic() Static {
	s := make(Static)
	for _, f := range allFeatures {
		in := f.in()
		if _, ok := s[in]; !ok {
			s[in] = fs.Query(in)
		}
	}
	max := In{Eax: extendedStart}
	s[max] = fs.Query(max)
	return s
}

// ToFeatureSet converts a static specification to a FeatureSet.
func (s Static) ToFeatureSet() FeatureSet {
	// Make a copy.
	ns := make(Static, len(s))
	for k, v := range s {
		ns[k] = v
	}
	return FeatureSet{ns}
}

// Add adds a feature.
func (s Static) Add(feature Feature) Static {
	feature.set(s, true)
	return s
}

// Remove removes a feature.
func (s Static) Remove(feature Feature) Static {
	feature.set(s, false)
	return s
}

// Set sets the output of a single function.
func (s Static) Set(in In, out Out) {
	s[in] = out
}

// Query implements Function.Query.
func (s Static) Query(in In) Out {
	return s[in]
}
