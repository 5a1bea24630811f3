// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostinfo probes host metadata for clawbridge heartbeat
// bodies: hostname, OS and architecture, kernel release, and uptime.
//
// Probe never returns an error. A field whose source is unreadable is
// left at its zero value; a container with no uname and no
// /proc/uptime is still a valid host that should report its name and
// platform.
package hostinfo

import (
	"os"
	"runtime"
)

// Info is a point-in-time host description.
type Info struct {
	Hostname      string `json:"hostname,omitempty"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	KernelVersion string `json:"kernel_version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
}

// Probe collects host metadata.
func Probe() Info {
	info := Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
	info.Hostname, _ = os.Hostname()
	info.KernelVersion = kernelVersion()
	info.UptimeSeconds = uptimeSeconds()
	return info
}
