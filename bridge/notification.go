// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openclaw-foundation/clawbridge/hub"
	"github.com/openclaw-foundation/clawbridge/lib/clawcli"
)

// HandleSubscriptionNotification accepts a notification delivered on
// the subscription's dedicated notification stream. It funnels into
// the same bridging decision as the notification branch of
// HandleSignal; the shared dedup key is what guarantees at most one
// agent run when both paths observe the same physical notification.
func (r *Runtime) HandleSubscriptionNotification(ctx context.Context, state *SessionState, notification hub.Notification) {
	if state.Closed {
		return
	}
	r.maybeBridgeNotification(ctx, state, hub.ChannelNotificationCreated, notification)
}

// maybeBridgeNotification decides whether a notification warrants an
// agent run. Only an unread, created-class, not-yet-seen notification
// triggers one. The run's request id is deterministic across delivery
// paths; on a successful run the notification is marked read, on any
// other status it is left unread so a future delivery can retry.
func (r *Runtime) maybeBridgeNotification(ctx context.Context, state *SessionState, channelType string, notification hub.Notification) {
	if channelType != hub.ChannelNotificationCreated {
		return
	}
	if notification.IsRead {
		return
	}

	key := notificationKey(notification.ID, channelType)
	if !state.MarkProcessed(key, r.clock.Now(), r.config.DedupWindow) {
		return
	}

	requestID := fmt.Sprintf("notification-%d", notification.ID)
	result := r.chat.Run(ctx, clawcli.ChatRequest{
		SessionID: state.SessionID,
		RequestID: requestID,
		UserText:  notificationPrompt(notification),
	})
	r.publishResult(ctx, state, hub.ChannelChatAgent, result)

	if result.Status != clawcli.StatusOK {
		r.logger.Warn("notification run failed, leaving unread",
			"notification_id", notification.ID,
			"request_id", requestID)
		return
	}
	if err := r.hub.MarkNotificationRead(ctx, notification.ID); err != nil {
		r.logger.Error("marking notification read failed",
			"notification_id", notification.ID,
			"error", err)
	}
}

// notificationKey builds the dedup key for one physical notification.
func notificationKey(notificationID int64, channelType string) string {
	return fmt.Sprintf("%d:%s", notificationID, channelType)
}

// notificationPrompt builds the user-facing prompt for a notification
// run: the human-readable notice, plus the suggested response action's
// JSON when one is attached.
func notificationPrompt(notification hub.Notification) string {
	prompt := fmt.Sprintf("You received a %s notification: %s",
		notification.NotificationType, notification.Message)

	if notification.ResponseAction != nil {
		if encoded, err := json.Marshal(notification.ResponseAction); err == nil {
			prompt += "\n\nresponse_action JSON:\n" + string(encoded)
		}
	}
	return prompt
}
