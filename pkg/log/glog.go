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

package log

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// glogTime is the layout of the timestamp in the header.
const glogTime = "0102 15:04:05.000000"

// pid is the space-padded process ID, seven columns wide as glog does.
var pid = fmt.Sprintf("%7d", os.Getpid())

// buffer holds one header. Headers generally fit in local, which keeps the
// data off the heap.
type buffer struct {
	local [256]byte
	data  []byte
}

func (b *buffer) String() string {
	return unsafeString(b.data)
}

// levelLetter returns the first letter of the level name, as glog prints it.
func levelLetter(level Level) byte {
	switch level {
	case Debug:
		return 'D'
	case Info:
		return 'I'
	default:
		return 'W'
	}
}

// header appends the glog header for a message logged from file:line.
func (b *buffer) header(level Level, timestamp time.Time, file string, line int) {
	b.data = append(b.local[:0], levelLetter(level))
	b.data = timestamp.AppendFormat(b.data, glogTime)
	b.data = append(b.data, ' ')
	b.data = append(b.data, pid...)
	b.data = append(b.data, ' ')
	b.data = append(b.data, file...)
	b.data = append(b.data, ':')
	b.data = strconv.AppendInt(b.data, int64(line), 10)
	b.data = append(b.data, "] "...)
}

// Emit emits the message, google-style.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	file, line := "x", 0
	if _, f, l, ok := runtime.Caller(depth + 1); ok {
		if slash := strings.LastIndexByte(f, '/'); slash >= 0 {
			f = f[slash+1:]
		}
		file, line = f, l
	}

	var b buffer
	b.header(level, timestamp, file, line)
	b.data = append(b.data, format...)
	b.data = append(b.data, '\n')

	g.Emitter.Emit(depth+1, level, timestamp, b.String(), args...)
}
