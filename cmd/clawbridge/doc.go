// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// clawbridge keeps a headless OpenClaw agent synchronized with one hub
// session. It subscribes to the session's push stream, backfills missed
// signals by polling, routes chat and notification traffic through the
// local agent CLI, and submits periodic capability heartbeats.
package main
