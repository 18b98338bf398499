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
	"pktrap.dev/pktrap/pkg/abi/linux"
	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/errors/linuxerr"
	"pktrap.dev/pktrap/pkg/hostarch"
	"pktrap.dev/pktrap/pkg/kernel"
	"pktrap.dev/pktrap/pkg/mm"
)

// Brk implements linux syscall brk(2).
func Brk(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	addr, _ := t.MemoryManager().Brk(args[0].Pointer())
	// "However, the actual Linux system call returns the new program break on
	// success. On failure, the system call returns the current break." -
	// brk(2)
	return uintptr(addr), nil
}

// Mmap implements Linux syscall mmap(2) for anonymous mappings.
func Mmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	prot := args[2].Int()
	flags := args[3].Int()
	offset := args[5].Uint64()
	fixed := flags&linux.MAP_FIXED != 0
	noReplace := flags&linux.MAP_FIXED_NOREPLACE != 0
	private := flags&linux.MAP_TYPE == linux.MAP_PRIVATE
	shared := flags&linux.MAP_TYPE == linux.MAP_SHARED
	anon := flags&linux.MAP_ANONYMOUS != 0

	// Require exactly one of MAP_PRIVATE and MAP_SHARED.
	if private == shared {
		return 0, linuxerr.EINVAL
	}
	if !anon {
		// There are no open files to map.
		return 0, linuxerr.EBADF
	}
	if offset&(hostarch.PageSize-1) != 0 {
		return 0, linuxerr.EINVAL
	}

	addr, err := t.MemoryManager().MMap(mm.MMapOpts{
		Length:    args[1].Uint64(),
		Addr:      args[0].Pointer(),
		Fixed:     fixed || noReplace,
		NoReplace: noReplace,
		Perms: hostarch.AccessType{
			Read:    prot&linux.PROT_READ != 0,
			Write:   prot&linux.PROT_WRITE != 0,
			Execute: prot&linux.PROT_EXEC != 0,
		},
	})
	return uintptr(addr), err
}

// Munmap implements linux syscall munmap(2).
func Munmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	return 0, t.MemoryManager().MUnmap(args[0].Pointer(), args[1].Uint64())
}
