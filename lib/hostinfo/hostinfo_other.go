// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package hostinfo

// Kernel release and uptime probes are Linux-only. Other platforms
// report zero values, which the heartbeat encoder omits.

func kernelVersion() string { return "" }

func uptimeSeconds() int64 { return 0 }
