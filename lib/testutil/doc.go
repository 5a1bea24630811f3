// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared by clawbridge tests:
// channel receive/close assertions with timeouts so that a hung
// component fails the test instead of hanging the suite.
package testutil
