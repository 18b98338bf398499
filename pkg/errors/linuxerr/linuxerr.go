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

// Package linuxerr contains syscall error codes exported as error interface
// pointers. This allows for fast comparison and return operations comparable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"golang.org/x/sys/unix"
	"pktrap.dev/pktrap/pkg/errors"
)

// The following errors are semantically identical to Errno of type unix.Errno
// or syscall.Errno. However, since the type are distinct (these are
// *errors.Error), they are not directly comparable. The Errno method returns
// an Errno number such that the error can be compared to unix.Errno (e.g.
// EPERM.Errno() == unix.EPERM is true).
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(unix.EPERM, "operation not permitted")
	ENOENT                = errors.New(unix.ENOENT, "no such file or directory")
	ESRCH                 = errors.New(unix.ESRCH, "no such process")
	EINTR                 = errors.New(unix.EINTR, "interrupted system call")
	EIO                   = errors.New(unix.EIO, "I/O error")
	EBADF                 = errors.New(unix.EBADF, "bad file number")
	EAGAIN                = errors.New(unix.EAGAIN, "try again")
	ENOMEM                = errors.New(unix.ENOMEM, "out of memory")
	EACCES                = errors.New(unix.EACCES, "permission denied")
	EFAULT                = errors.New(unix.EFAULT, "bad address")
	EBUSY                 = errors.New(unix.EBUSY, "device or resource busy")
	EEXIST                = errors.New(unix.EEXIST, "file exists")
	ENODEV                = errors.New(unix.ENODEV, "no such device")
	EINVAL                = errors.New(unix.EINVAL, "invalid argument")
	ENOSPC                = errors.New(unix.ENOSPC, "no space left on device")
	EPIPE                 = errors.New(unix.EPIPE, "broken pipe")
	ERANGE                = errors.New(unix.ERANGE, "math result not representable")
	ENOSYS                = errors.New(unix.ENOSYS, "invalid system call number")
	EOVERFLOW             = errors.New(unix.EOVERFLOW, "value too large for defined data type")
	ENOTSUP               = errors.New(unix.EOPNOTSUPP, "operation not supported")
)

var errorMap = func() map[unix.Errno]*errors.Error {
	m := make(map[unix.Errno]*errors.Error)
	for _, e := range []*errors.Error{
		EPERM, ENOENT, ESRCH, EINTR, EIO, EBADF, EAGAIN, ENOMEM, EACCES,
		EFAULT, EBUSY, EEXIST, ENODEV, EINVAL, ENOSPC, EPIPE, ERANGE,
		ENOSYS, EOVERFLOW, ENOTSUP,
	} {
		m[e.Errno()] = e
	}
	return m
}()

// ErrorFromUnix returns a linuxerr from a unix.Errno. Errnos without a
// registered *errors.Error are returned as the unix.Errno itself.
func ErrorFromUnix(err unix.Errno) error {
	if err == unix.Errno(0) {
		return nil
	}
	if e, ok := errorMap[err]; ok {
		return e
	}
	return err
}

// ToError converts a linuxerr to an error type.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts a linuxerr to a unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	var unixErr unix.Errno
	if e != noError {
		unixErr = e.Errno()
	}
	return unixErr
}

// Equals compares a linuxerr to a given error.
func Equals(e *errors.Error, err error) bool {
	var unixErr unix.Errno
	if e != noError {
		unixErr = e.Errno()
	}
	if err == nil {
		err = noError
	}
	return e == err || unixErr == err
}

// ExtractErrno extracts an errno from an error, best effort. If the error
// carries no errno, def is returned.
func ExtractErrno(err error, def unix.Errno) unix.Errno {
	var le *errors.Error
	var ue unix.Errno
	switch {
	case err == nil:
		return 0
	case goerrors.As(err, &le):
		return le.Errno()
	case goerrors.As(err, &ue):
		return ue
	default:
		return def
	}
}

// SyscallReturn encodes the outcome of a syscall into the value placed in
// the return register: the result itself on success, or the negated errno on
// failure. Errors without an errno are reported as EINVAL.
func SyscallReturn(ret uintptr, err error) uintptr {
	if err == nil {
		return ret
	}
	return uintptr(-int64(ExtractErrno(err, unix.EINVAL)))
}
