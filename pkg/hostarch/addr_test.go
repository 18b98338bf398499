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

package hostarch

import "testing"

func TestRounding(t *testing.T) {
	for _, tc := range []struct {
		addr Addr
		down Addr
		up   Addr
	}{
		{0, 0, 0},
		{1, 0, PageSize},
		{PageSize, PageSize, PageSize},
		{0x2001, 0x2000, 0x3000},
	} {
		if got := tc.addr.RoundDown(); got != tc.down {
			t.Errorf("%v.RoundDown() = %v, want %v", tc.addr, got, tc.down)
		}
		if got, ok := tc.addr.RoundUp(); !ok || got != tc.up {
			t.Errorf("%v.RoundUp() = %v, %t; want %v", tc.addr, got, ok, tc.up)
		}
	}
	if _, ok := Addr(^uint64(0)).RoundUp(); ok {
		t.Errorf("RoundUp of the last address did not report wraparound")
	}
}

func TestAddrRange(t *testing.T) {
	ar := AddrRange{0x1000, 0x3000}
	if !ar.Contains(0x2fff) || ar.Contains(0x3000) {
		t.Errorf("%v: Contains is not half-open", ar)
	}
	if !ar.Overlaps(AddrRange{0x2000, 0x4000}) {
		t.Errorf("%v should overlap [0x2000, 0x4000)", ar)
	}
	if ar.Overlaps(AddrRange{0x3000, 0x4000}) {
		t.Errorf("%v should not overlap [0x3000, 0x4000)", ar)
	}
	if got, want := ar.Intersect(AddrRange{0x2000, 0x4000}), (AddrRange{0x2000, 0x3000}); got != want {
		t.Errorf("Intersect = %v, want %v", got, want)
	}
}

func TestAccessType(t *testing.T) {
	for _, tc := range []struct {
		s    string
		want AccessType
	}{
		{"rwx", AnyAccess},
		{"r--", Read},
		{"rw", ReadWrite},
		{"--x", Execute},
		{"---", NoAccess},
	} {
		got, ok := ParseAccessType(tc.s)
		if !ok || got != tc.want {
			t.Errorf("ParseAccessType(%q) = %v, %t; want %v", tc.s, got, ok, tc.want)
		}
	}
	if !ReadWrite.SupersetOf(Write) || ReadWrite.SupersetOf(Execute) {
		t.Errorf("SupersetOf is wrong for %v", ReadWrite)
	}
	if got := Read.Union(Execute).String(); got != "r-x" {
		t.Errorf("String() = %q, want r-x", got)
	}
}
