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

// sstatus bits.
const (
	SstatusSIE  = 1 << 1
	SstatusSPIE = 1 << 5

	// SstatusSPP is set when the trap was taken from supervisor mode.
	SstatusSPP = 1 << 8

	SstatusSUM = 1 << 18
)

// sip bits.
const (
	SIPSupervisorSoftware = 1 << 1
	SIPSupervisorTimer    = 1 << 5
	SIPSupervisorExternal = 1 << 9
)

// SyscallInstructionWidth is the length in bytes of the ecall instruction.
//
// ecall has no compressed encoding, so a syscall trap always resumes this
// many bytes past sepc. This does not hold for traps raised by any other
// instruction when the C extension is enabled.
const SyscallInstructionWidth = 4
