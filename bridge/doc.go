// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the per-session runtime that keeps an agent
// process synchronized with the hub's event stream.
//
// Two delivery paths feed it: the push subscription and the poll
// backfill. Both funnel every signal through the same HandleSignal
// entry point, which maintains the session's ordering cursors,
// suppresses duplicate notification handling, classifies each signal
// by channel type, and routes it to chat handling, the notification
// bridge, or the unhandled-signal callback.
//
// Reconciliation between the two paths needs no locking: cursor
// updates are monotonic maxima and dedup entries are insert-if-absent,
// so re-delivery in any order converges to the same state. All
// handling for one session runs on one goroutine.
package bridge
