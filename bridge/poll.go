// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/openclaw-foundation/clawbridge/hub"
)

// rateLimitLogInterval throttles how often repeated poll throttling is
// logged. Purely a log-spam guard.
const rateLimitLogInterval = 60 * time.Second

// PollSessionSignals backfills signals the push path may not have
// delivered. The cursor comes from LastNonAgentSignalID; on a
// session's very first poll the cursor is absent entirely, which asks
// for the full backlog predating subscription readiness. Every fetched
// signal re-enters HandleSignal so dedup and routing behave
// identically regardless of delivery origin.
func (r *Runtime) PollSessionSignals(ctx context.Context, state *SessionState, source string) error {
	if state.Closed {
		return nil
	}

	query := hub.SignalQuery{
		Limit:         r.config.PollLimit,
		ExcludeSender: hub.SenderAgent,
	}
	if state.LastNonAgentSignalID > 0 {
		afterID := state.LastNonAgentSignalID
		query.AfterID = &afterID
	}

	now := r.clock.Now()
	state.LastSignalPollAt = now
	state.NextSignalPollAt = now.Add(r.config.PollInterval)

	signals, err := r.hub.SessionSignals(ctx, state.SessionID, query)
	if err != nil {
		if hub.IsStatus(err, http.StatusTooManyRequests) {
			if now.Sub(state.LastRateLimitLogAt) >= rateLimitLogInterval {
				state.LastRateLimitLogAt = now
				r.logger.Warn("signal poll rate limited", "session_id", state.SessionID)
			}
			return err
		}
		r.logger.Error("signal poll failed", "session_id", state.SessionID, "error", err)
		return err
	}

	for _, signal := range signals {
		r.HandleSignal(ctx, state, signal, source)
	}
	return nil
}

// Subscriber opens push subscriptions. *hub.Client implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID int64) (*hub.Subscription, error)
}

// Bridge runs the full event loop for one session: open the push
// subscription, take an initial unbounded poll for backlog, then serve
// push events and periodic poll backfills until the context ends or
// the stream closes. It returns the subscription's terminal error,
// nil on a clean shutdown.
func (r *Runtime) Bridge(ctx context.Context, state *SessionState, subscriber Subscriber) error {
	subscription, err := subscriber.Subscribe(ctx, state.SessionID)
	if err != nil {
		return err
	}
	state.subscription = subscription
	defer subscription.Close()

	// Backlog predating subscription readiness.
	r.PollSessionSignals(ctx, state, SourcePoll)

	return r.ProcessEvents(ctx, state, subscription.Events())
}

// ProcessEvents serves one session's event stream plus the poll
// ticker. Split from Bridge so tests can feed a synthetic channel.
func (r *Runtime) ProcessEvents(ctx context.Context, state *SessionState, events <-chan hub.Event) error {
	ticker := r.clock.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, open := <-events:
			if !open {
				state.ConnectionState = hub.StateDisconnected
				return nil
			}
			switch {
			case event.Signal != nil:
				r.HandleSignal(ctx, state, *event.Signal, SourcePush)
			case event.Notification != nil:
				r.HandleSubscriptionNotification(ctx, state, *event.Notification)
			case event.State != "":
				state.ConnectionState = event.State
				if event.State == hub.StateConnected {
					state.SawConnectedState = true
				}
			}

		case <-ticker.C:
			r.PollSessionSignals(ctx, state, SourcePoll)
		}
	}
}
