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

// Package kernel implements the task that services system calls raised by
// the guest context.
package kernel

import (
	"fmt"
	"io"
	"strings"

	"pktrap.dev/pktrap/pkg/abi/linux"
	"pktrap.dev/pktrap/pkg/arch"
	"pktrap.dev/pktrap/pkg/errors/linuxerr"
	"pktrap.dev/pktrap/pkg/hostarch"
	"pktrap.dev/pktrap/pkg/log"
	"pktrap.dev/pktrap/pkg/mm"
)

// Credentials are the identity reported by the get*id family.
type Credentials struct {
	UID  uint32
	EUID uint32
	GID  uint32
	EGID uint32
}

// TaskConfig defines the configuration of a new Task.
type TaskConfig struct {
	// TID is the thread ID. It is also reported as the thread group ID.
	TID int32

	// PPID is the parent's thread group ID.
	PPID int32

	// Credentials is the task's identity.
	Credentials Credentials

	// Hostname is reported as utsname.nodename.
	Hostname string

	// MemoryManager is the task's address space.
	MemoryManager *mm.MemoryManager

	// SyscallTable services the task's system calls.
	SyscallTable *SyscallTable

	// Stdout and Stderr receive writes to file descriptors 1 and 2. A nil
	// writer discards output.
	Stdout io.Writer
	Stderr io.Writer

	// Strace enables logging of every system call.
	Strace bool
}

// Task is a guest thread as seen by the syscall layer.
//
// Task implements trap.SyscallDispatcher. Like the dispatcher it serves, a
// Task is confined to one hart and is not safe for concurrent use.
type Task struct {
	tid      int32
	ppid     int32
	creds    Credentials
	hostname string
	mm       *mm.MemoryManager
	st       *SyscallTable
	stdout   io.Writer
	stderr   io.Writer
	strace   bool

	// yields counts sched_yield calls.
	yields int
}

// NewTask returns a new Task.
func NewTask(cfg TaskConfig) (*Task, error) {
	if cfg.MemoryManager == nil {
		return nil, fmt.Errorf("task %d: no memory manager", cfg.TID)
	}
	if cfg.SyscallTable == nil {
		return nil, fmt.Errorf("task %d: no syscall table", cfg.TID)
	}
	if cfg.SyscallTable.lookup == nil {
		cfg.SyscallTable.Init()
	}
	t := &Task{
		tid:      cfg.TID,
		ppid:     cfg.PPID,
		creds:    cfg.Credentials,
		hostname: cfg.Hostname,
		mm:       cfg.MemoryManager,
		st:       cfg.SyscallTable,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
		strace:   cfg.Strace,
	}
	if t.stdout == nil {
		t.stdout = io.Discard
	}
	if t.stderr == nil {
		t.stderr = io.Discard
	}
	return t, nil
}

// Syscall implements trap.SyscallDispatcher.Syscall.
//
// Errors are returned as negated errno values. exit and exit_group do not
// return; they unwind with *ExitStatus.
func (t *Task) Syscall(sysno uintptr, args arch.SyscallArguments) uintptr {
	var (
		rval uintptr
		err  error
	)
	if fn := t.st.Lookup(sysno); fn != nil {
		rval, err = fn(t, args)
	} else {
		rval, err = t.st.Missing(t, sysno, args)
		t.Debugf("Unsupported syscall %d(%s)", sysno, t.st.LookupName(sysno))
	}
	if t.strace {
		t.logSyscall(sysno, args, rval, err)
	}
	return linuxerr.SyscallReturn(rval, err)
}

func (t *Task) logSyscall(sysno uintptr, args arch.SyscallArguments, rval uintptr, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(", t.st.LookupName(sysno))
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%#x", a.Value)
	}
	b.WriteByte(')')
	if err != nil {
		t.Infof("%s = %#x (%v)", b.String(), rval, err)
		return
	}
	t.Infof("%s = %#x", b.String(), rval)
}

// ThreadID returns the task's thread ID.
func (t *Task) ThreadID() int32 {
	return t.tid
}

// ParentID returns the thread group ID of the task's parent.
func (t *Task) ParentID() int32 {
	return t.ppid
}

// Credentials returns the task's identity.
func (t *Task) Credentials() Credentials {
	return t.creds
}

// MemoryManager returns the task's address space.
func (t *Task) MemoryManager() *mm.MemoryManager {
	return t.mm
}

// SyscallTable returns the table servicing the task's system calls.
func (t *Task) SyscallTable() *SyscallTable {
	return t.st
}

// UtsName returns the system identification reported by uname(2).
func (t *Task) UtsName() linux.UtsName {
	var u linux.UtsName
	linux.SetUtsNameField(&u.Sysname, t.st.Version.Sysname)
	linux.SetUtsNameField(&u.Nodename, t.hostname)
	linux.SetUtsNameField(&u.Release, t.st.Version.Release)
	linux.SetUtsNameField(&u.Version, t.st.Version.Version)
	linux.SetUtsNameField(&u.Machine, t.st.Machine)
	linux.SetUtsNameField(&u.Domainname, "(none)")
	return u
}

// Output returns the writer backing file descriptor fd, or nil if fd is not
// open for writing.
func (t *Task) Output(fd int32) io.Writer {
	switch fd {
	case linux.STDOUT_FILENO:
		return t.stdout
	case linux.STDERR_FILENO:
		return t.stderr
	default:
		return nil
	}
}

// CopyIn copies len(dst) bytes from the task's memory at addr.
func (t *Task) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	return t.mm.CopyIn(addr, dst)
}

// CopyOut copies src to the task's memory at addr.
func (t *Task) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	return t.mm.CopyOut(addr, src)
}

// Yield records a voluntary reschedule. A single-hart context has nothing to
// yield to.
func (t *Task) Yield() {
	t.yields++
}

// Yields returns the number of calls to Yield.
func (t *Task) Yields() int {
	return t.yields
}

// Debugf creates a debug log that prepends the task's thread ID.
func (t *Task) Debugf(fmt string, v ...any) {
	if log.IsLogging(log.Debug) {
		log.Debugf("[%3d] "+fmt, append([]any{t.tid}, v...)...)
	}
}

// Infof logs at info level.
func (t *Task) Infof(fmt string, v ...any) {
	if log.IsLogging(log.Info) {
		log.Infof("[%3d] "+fmt, append([]any{t.tid}, v...)...)
	}
}

// Warningf logs a warning string.
func (t *Task) Warningf(fmt string, v ...any) {
	if log.IsLogging(log.Warning) {
		log.Warningf("[%3d] "+fmt, append([]any{t.tid}, v...)...)
	}
}
