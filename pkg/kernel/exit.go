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

package kernel

import "fmt"

// ExitStatus is the panic value a Task unwinds with when it exits. The
// caller of the trap dispatcher recovers it.
type ExitStatus struct {
	// Code is the exit code passed to exit or exit_group.
	Code int

	// Group is true for exit_group.
	Group bool
}

// Error implements error.Error.
func (es *ExitStatus) Error() string {
	if es.Group {
		return fmt.Sprintf("exit_group(%d)", es.Code)
	}
	return fmt.Sprintf("exit(%d)", es.Code)
}

// Exit ends the task. It does not return.
func (t *Task) Exit(code int, group bool) {
	t.Debugf("Exiting with status %d", code)
	panic(&ExitStatus{Code: code, Group: group})
}
