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

package mm

import (
	"pktrap.dev/pktrap/pkg/errors/linuxerr"
	"pktrap.dev/pktrap/pkg/hostarch"
)

// CopyIn copies len(dst) bytes from the address space at addr into dst. It
// returns the number of bytes copied, which is less than len(dst) only if
// err is non-nil.
func (mm *MemoryManager) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.withPagesLocked(addr, len(dst), hostarch.Read, func(b []byte, done int) {
		copy(dst[done:], b)
	})
}

// CopyOut copies src into the address space at addr. It returns the number
// of bytes copied, which is less than len(src) only if err is non-nil.
func (mm *MemoryManager) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.withPagesLocked(addr, len(src), hostarch.Write, func(b []byte, done int) {
		copy(b, src[done:])
	})
}

// withPagesLocked calls fn for each page-bounded chunk of [addr, addr+n),
// populating pages as needed. done is the offset of the chunk from addr.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) withPagesLocked(addr hostarch.Addr, n int, at hostarch.AccessType, fn func(b []byte, done int)) (int, error) {
	done := 0
	for done < n {
		cur, ok := addr.AddLength(uint64(done))
		if !ok {
			return done, linuxerr.EFAULT
		}
		v := mm.findVMALocked(cur)
		if v == nil || !v.perms.SupersetOf(at) {
			return done, linuxerr.EFAULT
		}
		pg := cur.RoundDown()
		p := mm.populateLocked(v, pg)
		off := int(cur - pg)
		chunk := min(hostarch.PageSize-off, n-done)
		fn(p[off:off+chunk], done)
		done += chunk
	}
	return done, nil
}
