// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clawcli discovers and drives the local OpenClaw agent CLI.
//
// It covers three concerns:
//
//   - Resolution: which executable is present, its version and build,
//     its model inventory, and the agent's display identity. Every
//     resolver stage degrades gracefully; absence produces a best
//     known answer, never an error.
//
//   - Chat runs: one request/response cycle against the agent process
//     (run start, run wait), with fallback to the persisted session
//     transcript when the wait phase returns nothing visible.
//
//   - Telemetry: normalizing the CLI's heterogeneous status output
//     (structured JSON or "Label: value" status lines) into one flat
//     metric record for heartbeat bodies.
package clawcli
