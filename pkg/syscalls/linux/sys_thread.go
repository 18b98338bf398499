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
	"pktrap.dev/pktrap/pkg/kernel"
)

// Exit implements Linux syscall exit(2).
func Exit(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	t.Exit(int(args[0].Int()&0xff), false)
	return 0, nil
}

// ExitGroup implements Linux syscall exit_group(2).
func ExitGroup(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	t.Exit(int(args[0].Int()&0xff), true)
	return 0, nil
}

// Getpid implements Linux syscall getpid(2). Each task is its own thread
// group.
func Getpid(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	return uintptr(t.ThreadID()), nil
}

// Getppid implements Linux syscall getppid(2).
func Getppid(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	return uintptr(t.ParentID()), nil
}

// Gettid implements Linux syscall gettid(2).
func Gettid(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	return uintptr(t.ThreadID()), nil
}

// SchedYield implements Linux syscall sched_yield(2).
func SchedYield(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	t.Yield()
	return 0, nil
}
