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

// Package cpuid answers the CPU feature questions asked by the paging code.
//
// To use FeatureSets, one should start with an existing FeatureSet (either
// HostFeatureSet() or a Static built for a simulated CPU) and test for
// features as desired.
//
// For example, the mapper only installs 1 GiB frames on CPUs that have them:
//
//	if !fs.HasFeature(X86FeatureGBPAGES) {
//		return ErrPageSizeNotSupported
//	}
package cpuid

import "strings"

// Function executes a CPUID function.
//
// This is typically the native function or a Static definition.
type Function interface {
	Query(In) Out
}

// In is input to the Query function.
type In struct {
	Eax uint32
	Ecx uint32
}

// Out is output from the Query function.
type Out struct {
	Eax uint32
	Ebx uint32
	Ecx uint32
	Edx uint32
}

// FeatureSet is a set of CPU features backed by a CPUID Function.
type FeatureSet struct {
	// Function is the underlying CPUID Function.
	Function
}

// HostFeatureSet returns a FeatureSet that matches that of the host machine.
func HostFeatureSet() FeatureSet {
	return hostFeatureSet()
}

// HasFeature tests whether or not a feature is in the given feature set.
//
//go:nosplit
func (fs FeatureSet) HasFeature(feature Feature) bool {
	return feature.check(fs)
}

// maxExtendedFunction returns the highest supported extended function.
func (fs FeatureSet) maxExtendedFunction() uint32 {
	return fs.Query(In{Eax: extendedStart}).Eax
}

// FlagString returns the names of the known features present in fs, in the
// order used by /proc/cpuinfo.
func (fs FeatureSet) FlagString() string {
	var names []string
	for _, f := range allFeatures {
		if fs.HasFeature(f) {
			names = append(names, f.String())
		}
	}
	return strings.Join(names, " ")
}

// Fixed returns a Static copy of fs, so that later queries do not execute
// CPUID.
func (fs FeatureSet) Fixed() FeatureSet {
	return fs.ToStatic().ToFeatureSet()
}
