// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openclaw-foundation/clawbridge/hub"
	"github.com/openclaw-foundation/clawbridge/lib/clawcli"
	"github.com/openclaw-foundation/clawbridge/lib/clock"
	"github.com/openclaw-foundation/clawbridge/lib/journal"
)

// HubClient is the subset of hub operations the runtime performs.
type HubClient interface {
	SessionSignals(ctx context.Context, sessionID int64, query hub.SignalQuery) ([]hub.Signal, error)
	PublishChannelMessage(ctx context.Context, sessionID int64, channelType, requestID string, payload any) error
	MarkNotificationRead(ctx context.Context, notificationID int64) error
}

// ChatRunner drives one request/response cycle against the agent.
type ChatRunner interface {
	Run(ctx context.Context, request clawcli.ChatRequest) clawcli.ChatResult
}

// Config configures a Runtime.
type Config struct {
	// Hub performs remote operations. Required.
	Hub HubClient
	// Chat runs agent invocations. Required.
	Chat ChatRunner

	// HandleChat routes chat.user signals to the agent. When false
	// they go to OnUnhandledSignal instead.
	HandleChat bool
	// HandleSnapshots routes snapshot.request signals to the agent.
	HandleSnapshots bool

	// PollLimit caps signals fetched per poll.
	PollLimit int
	// PollInterval is the poll loop period.
	PollInterval time.Duration
	// DedupWindow is how long notification dedup keys are remembered.
	DedupWindow time.Duration

	// Profile is the agent profile served and mutated by
	// agent.profile.update messages.
	Profile clawcli.AgentProfile

	// Journal, when non-nil, records every handled signal.
	Journal *journal.Journal

	// OnUnhandledSignal receives signals no handler claims. Nil means
	// they are logged and dropped.
	OnUnhandledSignal func(state *SessionState, signal hub.Signal)

	// Clock supplies time; nil means the real clock.
	Clock clock.Clock
	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Runtime routes signals for bridged sessions and drives the agent.
type Runtime struct {
	config  Config
	hub     HubClient
	chat    ChatRunner
	clock   clock.Clock
	logger  *slog.Logger
	profile clawcli.AgentProfile
}

// NewRuntime creates a Runtime.
func NewRuntime(config Config) (*Runtime, error) {
	if config.Hub == nil {
		return nil, fmt.Errorf("bridge: Hub is required")
	}
	if config.Chat == nil {
		return nil, fmt.Errorf("bridge: Chat is required")
	}
	if config.PollLimit <= 0 {
		config.PollLimit = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 15 * time.Second
	}
	if config.DedupWindow <= 0 {
		config.DedupWindow = 24 * time.Hour
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		config:  config,
		hub:     config.Hub,
		chat:    config.Chat,
		clock:   clk,
		logger:  logger,
		profile: config.Profile,
	}, nil
}

// Profile returns the current agent profile.
func (r *Runtime) Profile() clawcli.AgentProfile {
	return r.profile
}

// journalRecord is the journal line written per handled signal.
type journalRecord struct {
	SignalID  int64  `json:"signal_id"`
	SessionID int64  `json:"session_id"`
	Sender    string `json:"sender"`
	Channel   string `json:"channel"`
	Source    string `json:"source"`
	HandledAt int64  `json:"handled_at"`
}

// HandleSignal accepts one signal from either delivery path. It is
// idempotent under re-delivery: cursors merge monotonically and
// notification handling dedups by key, so push and poll can deliver
// the same signal in any order.
func (r *Runtime) HandleSignal(ctx context.Context, state *SessionState, signal hub.Signal, source string) {
	if state.Closed {
		return
	}

	state.ObserveSignal(signal)

	if r.config.Journal != nil {
		record := journalRecord{
			SignalID:  signal.ID,
			SessionID: signal.SessionID,
			Sender:    signal.Sender,
			Channel:   signal.Payload.Type,
			Source:    source,
			HandledAt: r.clock.Now().Unix(),
		}
		if err := r.config.Journal.Append(record); err != nil {
			r.logger.Warn("journal append failed", "error", err)
		}
	}

	switch signal.Payload.Type {
	case hub.ChannelChatUser:
		if !r.config.HandleChat {
			r.unhandled(state, signal)
			return
		}
		r.handleChatUser(ctx, state, signal)

	case hub.ChannelNotificationCreated, hub.ChannelNotificationUpdated:
		var notification hub.Notification
		if err := json.Unmarshal(signal.Payload.Payload, &notification); err != nil {
			r.logger.Warn("malformed notification payload",
				"signal_id", signal.ID, "error", err)
			return
		}
		r.maybeBridgeNotification(ctx, state, signal.Payload.Type, notification)

	case hub.ChannelSnapshotRequest:
		if !r.config.HandleSnapshots {
			r.unhandled(state, signal)
			return
		}
		r.handleSnapshotRequest(ctx, state, signal)

	case hub.ChannelProfileUpdate:
		r.handleProfileUpdate(ctx, state, signal)

	case hub.ChannelChatAgentDelta, hub.ChannelChatAgent,
		hub.ChannelProfileUpdated, hub.ChannelProfileError,
		hub.ChannelSnapshotResult:
		// Echoes of this bridge's own output coming back around the
		// channel. Counted in the cursors above, otherwise inert.

	default:
		r.unhandled(state, signal)
	}
}

// unhandled routes a signal nothing claimed to the callback.
func (r *Runtime) unhandled(state *SessionState, signal hub.Signal) {
	if r.config.OnUnhandledSignal != nil {
		r.config.OnUnhandledSignal(state, signal)
		return
	}
	r.logger.Info("unhandled signal",
		"session_id", state.SessionID,
		"signal_id", signal.ID,
		"channel", signal.Payload.Type)
}

// handleChatUser runs the agent for one inbound chat message and
// publishes the result.
func (r *Runtime) handleChatUser(ctx context.Context, state *SessionState, signal hub.Signal) {
	var message hub.ChatMessage
	if err := json.Unmarshal(signal.Payload.Payload, &message); err != nil {
		r.logger.Warn("malformed chat payload", "signal_id", signal.ID, "error", err)
		return
	}

	requestID := message.RequestID
	if requestID == "" {
		requestID = fmt.Sprintf("chat-%d", signal.ID)
	}

	result := r.chat.Run(ctx, clawcli.ChatRequest{
		SessionID: state.SessionID,
		RequestID: requestID,
		UserText:  message.Text,
	})
	r.publishResult(ctx, state, hub.ChannelChatAgent, result)
}

// handleSnapshotRequest runs the agent for a snapshot prompt and
// publishes the result on the snapshot channel under the inbound
// request id.
func (r *Runtime) handleSnapshotRequest(ctx context.Context, state *SessionState, signal hub.Signal) {
	var request hub.SnapshotRequest
	if err := json.Unmarshal(signal.Payload.Payload, &request); err != nil {
		r.logger.Warn("malformed snapshot payload", "signal_id", signal.ID, "error", err)
		return
	}

	requestID := request.RequestID
	if requestID == "" {
		requestID = fmt.Sprintf("snapshot-%d", signal.ID)
	}

	result := r.chat.Run(ctx, clawcli.ChatRequest{
		SessionID: state.SessionID,
		RequestID: requestID,
		UserText:  request.Prompt,
	})
	r.publishResult(ctx, state, hub.ChannelSnapshotResult, result)
}

// publishResult publishes one chat result onto the session channel.
func (r *Runtime) publishResult(ctx context.Context, state *SessionState, channelType string, result clawcli.ChatResult) {
	err := r.hub.PublishChannelMessage(ctx, state.SessionID, channelType, result.RequestID, result)
	if err != nil {
		r.logger.Error("publishing chat result failed",
			"session_id", state.SessionID,
			"request_id", result.RequestID,
			"error", err)
	}
}
