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
	"pktrap.dev/pktrap/pkg/log"
)

// HandleFault populates the page containing addr if a vma grants access
// at. It is safe to call again for an address it already resolved, and for
// an address it refused.
func (mm *MemoryManager) HandleFault(addr hostarch.Addr, at hostarch.AccessType) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	v := mm.findVMALocked(addr)
	if v == nil {
		return linuxerr.EFAULT
	}
	if !v.perms.SupersetOf(at) {
		return linuxerr.EACCES
	}
	mm.populateLocked(v, addr.RoundDown())
	return nil
}

// MMapOpts specifies a mapping.
type MMapOpts struct {
	// Length is the length of the mapping in bytes. It is rounded up to a
	// whole number of pages.
	Length uint64

	// Addr is the mapping address if Fixed is set, and a hint otherwise.
	Addr hostarch.Addr

	// Fixed requires the mapping to be placed at Addr, replacing any
	// mappings it overlaps.
	Fixed bool

	// NoReplace makes a Fixed mapping fail with EEXIST instead of replacing
	// existing mappings.
	NoReplace bool

	Perms hostarch.AccessType

	// Name is shown in the maps listing.
	Name string

	// Data initializes the mapping. It must not be longer than Length.
	Data []byte
}

// MMap establishes a mapping and returns its address.
func (mm *MemoryManager) MMap(opts MMapOpts) (hostarch.Addr, error) {
	if opts.Length == 0 || uint64(len(opts.Data)) > opts.Length {
		return 0, linuxerr.EINVAL
	}
	length, ok := hostarch.Addr(opts.Length).RoundUp()
	if !ok {
		return 0, linuxerr.ENOMEM
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	var ar hostarch.AddrRange
	if opts.Fixed {
		if !opts.Addr.IsPageAligned() {
			return 0, linuxerr.EINVAL
		}
		ar, ok = opts.Addr.ToRange(uint64(length))
		if !ok || ar.Start < mm.layout.MinAddr || ar.End > mm.layout.MaxAddr {
			return 0, linuxerr.ENOMEM
		}
		if len(mm.overlappingLocked(ar)) != 0 {
			if opts.NoReplace {
				return 0, linuxerr.EEXIST
			}
			mm.unmapLocked(ar)
		}
	} else {
		start, err := mm.findAvailableLocked(uint64(length), opts.Addr)
		if err != nil {
			return 0, err
		}
		ar = hostarch.AddrRange{Start: start, End: start + length}
	}

	mm.vmas.ReplaceOrInsert(&vma{
		ar:    ar,
		perms: opts.Perms,
		name:  opts.Name,
		data:  opts.Data,
	})
	log.Debugf("mmap %v %v %q", ar, opts.Perms, opts.Name)
	return ar.Start, nil
}

// Map establishes a fixed mapping that must not overlap existing mappings.
func (mm *MemoryManager) Map(opts MMapOpts) error {
	opts.Fixed = true
	opts.NoReplace = true
	_, err := mm.MMap(opts)
	return err
}

// findAvailableLocked returns the lowest free range of the given length at
// or above hint, never below the mmap base.
//
// Preconditions: mm.mu must be locked. length is page-aligned.
func (mm *MemoryManager) findAvailableLocked(length uint64, hint hostarch.Addr) (hostarch.Addr, error) {
	start := hint.RoundDown()
	if start < mm.layout.MMapBase {
		start = mm.layout.MMapBase
	}
	for {
		ar, ok := start.ToRange(length)
		if !ok || ar.End > mm.layout.MaxAddr {
			return 0, linuxerr.ENOMEM
		}
		vs := mm.overlappingLocked(ar)
		if len(vs) == 0 {
			return start, nil
		}
		start = vs[len(vs)-1].ar.End
	}
}

// MUnmap implements the semantics of Linux's munmap(2).
func (mm *MemoryManager) MUnmap(addr hostarch.Addr, length uint64) error {
	if !addr.IsPageAligned() || length == 0 {
		return linuxerr.EINVAL
	}
	la, ok := hostarch.Addr(length).RoundUp()
	if !ok {
		return linuxerr.EINVAL
	}
	ar, ok := addr.ToRange(uint64(la))
	if !ok {
		return linuxerr.EINVAL
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.unmapLocked(ar)
	return nil
}

// BrkSetup resets the heap to start at addr, unmapping the previous heap.
func (mm *MemoryManager) BrkSetup(addr hostarch.Addr) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.brk.Length() != 0 {
		mm.unmapLocked(hostarch.AddrRange{Start: mm.brk.Start.RoundDown(), End: mm.brk.End.MustRoundUp()})
	}
	mm.brk = hostarch.AddrRange{Start: addr, End: addr}
}

// Brk implements the semantics of Linux's brk(2), except that it returns an
// error on failure. The returned address is always the resulting break.
func (mm *MemoryManager) Brk(addr hostarch.Addr) (hostarch.Addr, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if addr < mm.brk.Start {
		return mm.brk.End, linuxerr.EINVAL
	}
	if uint64(addr-mm.brk.Start) > maxBrkSize {
		return mm.brk.End, linuxerr.ENOMEM
	}
	oldbrkpg, _ := mm.brk.End.RoundUp()
	newbrkpg, ok := addr.RoundUp()
	if !ok {
		return mm.brk.End, linuxerr.EFAULT
	}

	switch {
	case oldbrkpg < newbrkpg:
		ar := hostarch.AddrRange{Start: oldbrkpg, End: newbrkpg}
		if ar.End > mm.layout.MaxAddr || len(mm.overlappingLocked(ar)) != 0 {
			return mm.brk.End, linuxerr.ENOMEM
		}
		if prev := mm.findVMALocked(oldbrkpg - 1); prev != nil && prev.name == heapName && prev.ar.End == oldbrkpg {
			// Extending in place keeps the tree order, which only depends
			// on start addresses.
			prev.ar.End = newbrkpg
		} else {
			mm.vmas.ReplaceOrInsert(&vma{ar: ar, perms: hostarch.ReadWrite, name: heapName})
		}
	case newbrkpg < oldbrkpg:
		mm.unmapLocked(hostarch.AddrRange{Start: newbrkpg, End: oldbrkpg})
	}
	mm.brk.End = addr
	return addr, nil
}

const heapName = "[heap]"
