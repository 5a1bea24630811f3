// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package hub is the client for the collaboration service's realtime
// API: polling session signals, publishing channel messages, marking
// notifications read, submitting heartbeats, and holding the push
// subscription stream.
//
// The hub's CRUD resources (boards, tasks, calendar items, files) are
// out of scope; this package touches only the realtime signal envelope
// and treats resource bodies as opaque payloads.
//
// Every failed operation surfaces as a *Error carrying only the
// operation name and HTTP status code. Response bodies of failed
// requests are discarded unread by callers; see Error for why.
package hub
