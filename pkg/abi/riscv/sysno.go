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

package riscv

// Linux riscv64 syscall numbers (asm-generic/unistd.h) for the calls the
// proxy kernel services.
const (
	SysOpenat     = 56
	SysClose      = 57
	SysRead       = 63
	SysWrite      = 64
	SysExit       = 93
	SysExitGroup  = 94
	SysSchedYield = 124
	SysUname      = 160
	SysGetpid     = 172
	SysGetppid    = 173
	SysGetuid     = 174
	SysGeteuid    = 175
	SysGetgid     = 176
	SysGetegid    = 177
	SysGettid     = 178
	SysBrk        = 214
	SysMunmap     = 215
	SysMmap       = 222
)
