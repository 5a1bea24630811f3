// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source with a real
// implementation backed by the time package and a deterministic fake
// for tests. The bridge's poll scheduler, dedup eviction, and
// heartbeat loop all take a Clock so their timing behavior is testable
// without real sleeps.
package clock
