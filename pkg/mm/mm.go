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

// Package mm implements the guest address space: the set of virtual memory
// areas (vmas) a context may touch and the pages populated behind them.
//
// Pages are populated lazily. A vma only grants access; the backing page is
// created by the first fault (or copy) that touches it.
package mm

import (
	"sync"

	"github.com/google/btree"
	"pktrap.dev/pktrap/pkg/hostarch"
)

// Layout bounds the address space.
type Layout struct {
	// MinAddr is the lowest mappable address.
	MinAddr hostarch.Addr

	// MaxAddr is one past the highest mappable address.
	MaxAddr hostarch.Addr

	// MMapBase is where the search for non-fixed mappings starts.
	MMapBase hostarch.Addr

	// BrkStart is the initial program break.
	BrkStart hostarch.Addr
}

// DefaultLayout is an Sv39 user address space.
var DefaultLayout = Layout{
	MinAddr:  hostarch.PageSize,
	MaxAddr:  0x40_0000_0000,
	MMapBase: 0x10_0000_0000,
	BrkStart: 0x100_0000,
}

// maxBrkSize bounds the heap.
const maxBrkSize = 1 << 30

// btreeDegree is the degree of the vma tree.
const btreeDegree = 8

type page [hostarch.PageSize]byte

// vma is a virtual memory area.
type vma struct {
	ar    hostarch.AddrRange
	perms hostarch.AccessType
	name  string

	// data initializes pages on first population. data[0] is the byte at
	// ar.Start; pages past the end of data are zero-filled.
	data []byte
}

func vmaLess(a, b *vma) bool {
	return a.ar.Start < b.ar.Start
}

// vmaKey returns a tree key for lookups by address.
func vmaKey(addr hostarch.Addr) *vma {
	return &vma{ar: hostarch.AddrRange{Start: addr, End: addr}}
}

// MemoryManager implements a guest address space.
type MemoryManager struct {
	layout Layout

	// mu protects the fields below.
	mu sync.Mutex

	// vmas is ordered by start address. vmas never overlap.
	vmas *btree.BTreeG[*vma]

	// pages holds populated pages, keyed by page address. Every key lies in
	// some vma.
	pages map[hostarch.Addr]*page

	// brk is the heap: [start of heap, current program break).
	brk hostarch.AddrRange
}

// NewMemoryManager returns an empty address space with the given layout.
func NewMemoryManager(layout Layout) *MemoryManager {
	return &MemoryManager{
		layout: layout,
		vmas:   btree.NewG(btreeDegree, vmaLess),
		pages:  make(map[hostarch.Addr]*page),
		brk:    hostarch.AddrRange{Start: layout.BrkStart, End: layout.BrkStart},
	}
}

// findVMALocked returns the vma containing addr, or nil.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) findVMALocked(addr hostarch.Addr) *vma {
	var found *vma
	mm.vmas.DescendLessOrEqual(vmaKey(addr), func(v *vma) bool {
		if v.ar.Contains(addr) {
			found = v
		}
		return false
	})
	return found
}

// overlappingLocked returns the vmas overlapping ar in address order.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) overlappingLocked(ar hostarch.AddrRange) []*vma {
	var vs []*vma
	var first *vma
	mm.vmas.DescendLessOrEqual(vmaKey(ar.Start), func(v *vma) bool {
		if v.ar.Overlaps(ar) {
			first = v
			vs = append(vs, v)
		}
		return false
	})
	mm.vmas.AscendGreaterOrEqual(vmaKey(ar.Start), func(v *vma) bool {
		if v.ar.Start >= ar.End {
			return false
		}
		if v != first {
			vs = append(vs, v)
		}
		return true
	})
	return vs
}

// unmapLocked removes ar from the address space, splitting vmas that
// straddle its bounds and dropping the pages it covered.
//
// Preconditions: mm.mu must be locked. ar is page-aligned.
func (mm *MemoryManager) unmapLocked(ar hostarch.AddrRange) {
	for _, v := range mm.overlappingLocked(ar) {
		mm.vmas.Delete(v)
		if v.ar.Start < ar.Start {
			mm.vmas.ReplaceOrInsert(v.slice(hostarch.AddrRange{Start: v.ar.Start, End: ar.Start}))
		}
		if ar.End < v.ar.End {
			mm.vmas.ReplaceOrInsert(v.slice(hostarch.AddrRange{Start: ar.End, End: v.ar.End}))
		}
		gone := v.ar.Intersect(ar)
		for pg := gone.Start; pg < gone.End; pg += hostarch.PageSize {
			delete(mm.pages, pg)
		}
	}
}

// slice returns the part of v covering sub.
//
// Preconditions: sub is a page-aligned subrange of v.ar.
func (v *vma) slice(sub hostarch.AddrRange) *vma {
	nv := &vma{ar: sub, perms: v.perms, name: v.name}
	if off := uint64(sub.Start - v.ar.Start); off < uint64(len(v.data)) {
		nv.data = v.data[off:]
		if n := sub.Length(); uint64(len(nv.data)) > n {
			nv.data = nv.data[:n]
		}
	}
	return nv
}

// populateLocked returns the page at pg, creating it if needed.
//
// Preconditions: mm.mu must be locked. pg is page-aligned and inside v.
func (mm *MemoryManager) populateLocked(v *vma, pg hostarch.Addr) *page {
	if p, ok := mm.pages[pg]; ok {
		return p
	}
	p := new(page)
	if off := uint64(pg - v.ar.Start); off < uint64(len(v.data)) {
		copy(p[:], v.data[off:])
	}
	mm.pages[pg] = p
	return p
}

// ResidentPages returns the number of populated pages.
func (mm *MemoryManager) ResidentPages() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.pages)
}
