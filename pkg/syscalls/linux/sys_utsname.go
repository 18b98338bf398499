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
	"pktrap.dev/pktrap/pkg/kernel"
)

// Uname implements linux syscall uname.
func Uname(t *kernel.Task, args arch.SyscallArguments) (uintptr, error) {
	u := t.UtsName()
	buf := make([]byte, linux.SizeOfUtsName)
	u.MarshalBytes(buf)
	if _, err := t.CopyOut(args[0].Pointer(), buf); err != nil {
		return 0, err
	}
	return 0, nil
}
