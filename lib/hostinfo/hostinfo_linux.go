// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package hostinfo

import "golang.org/x/sys/unix"

// kernelVersion returns the kernel release string from uname(2).
func kernelVersion() string {
	var utsname unix.Utsname
	if err := unix.Uname(&utsname); err != nil {
		return ""
	}
	return bytesToString(utsname.Release[:])
}

// uptimeSeconds returns the host uptime from sysinfo(2).
func uptimeSeconds() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return int64(info.Uptime)
}

// bytesToString converts a null-terminated byte array field to a Go
// string, stopping at the first null byte.
func bytesToString(field []byte) string {
	for i, value := range field {
		if value == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
