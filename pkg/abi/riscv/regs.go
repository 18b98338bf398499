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

import (
	"strconv"
	"strings"
)

// NumRegisters is the number of integer registers.
const NumRegisters = 32

// Integer register indices, by ABI name.
const (
	RegZero = iota
	RegRA
	RegSP
	RegGP
	RegTP
	RegT0
	RegT1
	RegT2
	RegS0
	RegS1
	RegA0
	RegA1
	RegA2
	RegA3
	RegA4
	RegA5
	RegA6
	RegA7
	RegS2
	RegS3
	RegS4
	RegS5
	RegS6
	RegS7
	RegS8
	RegS9
	RegS10
	RegS11
	RegT3
	RegT4
	RegT5
	RegT6
)

// Syscall ABI registers.
const (
	// RegSyscallNo holds the syscall number.
	RegSyscallNo = RegA7

	// RegSyscallReturn receives the syscall result. It is also the first
	// argument register.
	RegSyscallReturn = RegA0
)

// SyscallArgRegs are the argument registers, in argument order.
var SyscallArgRegs = [6]int{RegA0, RegA1, RegA2, RegA3, RegA4, RegA5}

// RegisterNames are the ABI names of the integer registers.
var RegisterNames = [NumRegisters]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegisterByName returns the index of the register named name. Both ABI
// names ("a0", "fp") and architectural names ("x10") are accepted.
func RegisterByName(name string) (int, bool) {
	name = strings.ToLower(name)
	if name == "fp" {
		return RegS0, true
	}
	for i, n := range RegisterNames {
		if n == name {
			return i, true
		}
	}
	if rest, ok := strings.CutPrefix(name, "x"); ok {
		if i, err := strconv.Atoi(rest); err == nil && i >= 0 && i < NumRegisters {
			return i, true
		}
	}
	return 0, false
}
