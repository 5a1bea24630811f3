// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"

	"github.com/openclaw-foundation/clawbridge/hub"
)

// profileError is the body published on agent.profile.error.
type profileError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// handleProfileUpdate applies an agent.profile.update control message.
// A missing request_id is answered with a structured error reply; the
// signal still counts as processed either way.
func (r *Runtime) handleProfileUpdate(ctx context.Context, state *SessionState, signal hub.Signal) {
	var update hub.ProfileUpdate
	if err := json.Unmarshal(signal.Payload.Payload, &update); err != nil {
		r.logger.Warn("malformed profile update payload",
			"signal_id", signal.ID, "error", err)
		return
	}

	if update.RequestID == "" {
		r.publishError(ctx, state, hub.ChannelProfileError, "", profileError{
			Code:  "invalid_request",
			Error: "request_id is required",
		})
		return
	}

	if update.Name != "" {
		r.profile.Name = update.Name
	}
	if update.Emoji != "" {
		r.profile.Emoji = update.Emoji
	}

	err := r.hub.PublishChannelMessage(ctx, state.SessionID,
		hub.ChannelProfileUpdated, update.RequestID, r.profile)
	if err != nil {
		r.logger.Error("publishing profile update ack failed",
			"request_id", update.RequestID, "error", err)
	}
}

// publishError publishes a structured error reply on an error channel.
func (r *Runtime) publishError(ctx context.Context, state *SessionState, channelType, requestID string, body profileError) {
	err := r.hub.PublishChannelMessage(ctx, state.SessionID, channelType, requestID, body)
	if err != nil {
		r.logger.Error("publishing error reply failed",
			"channel", channelType, "error", err)
	}
}
