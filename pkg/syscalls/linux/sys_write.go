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

package linux

import (
	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/errors/linuxerr"
	"pktrap.dev/pktrap/pkg/kernel"
)

// maxWriteSize bounds the bytes transferred by a single write. Larger writes
// are short, as Linux permits.
const maxWriteSize = 1 << 20

// Write implements Linux syscall write(2).
func Write(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()

	w := t.Output(fd)
	if w == nil {
		return 0, linuxerr.EBADF
	}
	if int(size) < 0 {
		return 0, linuxerr.EINVAL
	}
	if size == 0 {
		return 0, nil
	}

	buf := make([]byte, min(size, maxWriteSize))
	n, err := t.CopyIn(addr, buf)
	if n == 0 {
		return 0, err
	}
	written, err := w.Write(buf[:n])
	if written == 0 && err != nil {
		t.Debugf("write to fd %d failed: %v", fd, err)
		return 0, linuxerr.EIO
	}
	return uintptr(written), nil
}
