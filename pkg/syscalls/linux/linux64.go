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

// Package linux provides the Linux riscv64 syscall table.
package linux

import (
	"pktrap.dev/pktrap/pkg/abi/riscv"
	"pktrap.dev/pktrap/pkg/kernel"
)

// RISCV64 is the table of Linux riscv64 syscalls serviced by a Task. The
// numbers are those of asm-generic/unistd.h.
var RISCV64 = &kernel.SyscallTable{
	Name:    "linux/riscv64",
	Machine: "riscv64",
	Version: kernel.Version{
		Sysname: "Linux",
		Release: "5.15.0",
		Version: "#1 SMP",
	},
	Table: map[uintptr]kernel.Syscall{
		riscv.SysOpenat:     {Name: "openat", SupportLevel: kernel.SupportUnimplemented, Note: "There is no file system."},
		riscv.SysClose:      {Name: "close", SupportLevel: kernel.SupportUnimplemented, Note: "There is no file system."},
		riscv.SysRead:       {Name: "read", SupportLevel: kernel.SupportUnimplemented, Note: "Standard input is not connected."},
		riscv.SysWrite:      {Name: "write", Fn: Write, SupportLevel: kernel.SupportPartial, Note: "Only standard output and standard error are open."},
		riscv.SysExit:       {Name: "exit", Fn: Exit, SupportLevel: kernel.SupportFull},
		riscv.SysExitGroup:  {Name: "exit_group", Fn: ExitGroup, SupportLevel: kernel.SupportFull},
		riscv.SysSchedYield: {Name: "sched_yield", Fn: SchedYield, SupportLevel: kernel.SupportFull},
		riscv.SysUname:      {Name: "uname", Fn: Uname, SupportLevel: kernel.SupportFull},
		riscv.SysGetpid:     {Name: "getpid", Fn: Getpid, SupportLevel: kernel.SupportFull},
		riscv.SysGetppid:    {Name: "getppid", Fn: Getppid, SupportLevel: kernel.SupportFull},
		riscv.SysGetuid:     {Name: "getuid", Fn: Getuid, SupportLevel: kernel.SupportFull},
		riscv.SysGeteuid:    {Name: "geteuid", Fn: Geteuid, SupportLevel: kernel.SupportFull},
		riscv.SysGetgid:     {Name: "getgid", Fn: Getgid, SupportLevel: kernel.SupportFull},
		riscv.SysGetegid:    {Name: "getegid", Fn: Getegid, SupportLevel: kernel.SupportFull},
		riscv.SysGettid:     {Name: "gettid", Fn: Gettid, SupportLevel: kernel.SupportFull},
		riscv.SysBrk:        {Name: "brk", Fn: Brk, SupportLevel: kernel.SupportFull},
		riscv.SysMunmap:     {Name: "munmap", Fn: Munmap, SupportLevel: kernel.SupportFull},
		riscv.SysMmap:       {Name: "mmap", Fn: Mmap, SupportLevel: kernel.SupportPartial, Note: "Anonymous mappings only. MAP_SHARED behaves as MAP_PRIVATE and MAP_POPULATE is ignored."},
	},
}

func init() {
	kernel.RegisterSyscallTable(RISCV64)
}
