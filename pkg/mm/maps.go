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
	"fmt"
	"strings"
)

// String returns the address space in the format of /proc/[pid]/maps,
// without the offset, device and inode columns.
func (mm *MemoryManager) String() string {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	var b strings.Builder
	mm.vmas.Ascend(func(v *vma) bool {
		fmt.Fprintf(&b, "%08x-%08x %sp", uint64(v.ar.Start), uint64(v.ar.End), v.perms)
		if v.name != "" {
			fmt.Fprintf(&b, " %s", v.name)
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}
