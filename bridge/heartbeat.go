// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/openclaw-foundation/clawbridge/lib/clawcli"
	"github.com/openclaw-foundation/clawbridge/lib/clock"
)

// HeartbeatSubmitter submits one heartbeat body to the hub.
type HeartbeatSubmitter interface {
	SubmitHeartbeat(ctx context.Context, body any) error
}

// HeartbeatBuilder produces heartbeat bodies. *clawcli.Heartbeat
// implements it.
type HeartbeatBuilder interface {
	Build(ctx context.Context) clawcli.HeartbeatBody
}

// HeartbeatLoop periodically builds and submits heartbeat bodies. It
// is independent of signal flow: a session with no traffic still
// heartbeats, and a broken agent binary still produces a (degraded)
// body.
type HeartbeatLoop struct {
	Hub      HeartbeatSubmitter
	Builder  HeartbeatBuilder
	Interval time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Run submits one heartbeat immediately, then one per interval until
// the context ends. Submission failures are logged and the loop keeps
// going; heartbeats are periodic state, the next tick supersedes a
// lost one.
func (l *HeartbeatLoop) Run(ctx context.Context) {
	clk := l.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l.tick(ctx, logger)

	ticker := clk.NewTicker(l.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx, logger)
		}
	}
}

func (l *HeartbeatLoop) tick(ctx context.Context, logger *slog.Logger) {
	body := l.Builder.Build(ctx)
	if err := l.Hub.SubmitHeartbeat(ctx, body); err != nil {
		logger.Warn("heartbeat submission failed", "error", err)
	}
}
