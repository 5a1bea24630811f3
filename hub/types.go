// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"encoding/json"
	"time"
)

// Signal senders.
const (
	SenderAgent   = "agent"
	SenderSystem  = "system"
	SenderBrowser = "browser"
)

// Channel types carried in the signal payload envelope.
const (
	ChannelChatUser            = "chat.user"
	ChannelChatAgentDelta      = "chat.agent.delta"
	ChannelChatAgent           = "chat.agent"
	ChannelNotificationCreated = "notification.created"
	ChannelNotificationUpdated = "notification.updated"
	ChannelSnapshotRequest     = "snapshot.request"
	ChannelSnapshotResult      = "snapshot.result"
	ChannelProfileUpdate       = "agent.profile.update"
	ChannelProfileUpdated      = "agent.profile.updated"
	ChannelProfileError        = "agent.profile.error"
)

// Signal is one event in the hub's realtime stream. The hub assigns
// IDs monotonically within a session; a signal may be delivered more
// than once (push plus poll backfill), never mutated.
type Signal struct {
	ID        int64          `json:"id"`
	SessionID int64          `json:"session_id"`
	Sender    string         `json:"sender"`
	Type      string         `json:"type"`
	Payload   ChannelMessage `json:"payload"`
	CreatedAt *time.Time     `json:"created_at"`
}

// ChannelMessage is the tagged payload envelope inside a signal. The
// inner payload's shape depends on Type; it stays raw until a handler
// for that channel type decodes it.
type ChannelMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notification is the body of notification.created and
// notification.updated channel messages.
type Notification struct {
	ID               int64           `json:"id"`
	NotificationType string          `json:"notification_type"`
	Message          string          `json:"message"`
	IsRead           bool            `json:"is_read"`
	ResponseAction   *ResponseAction `json:"response_action,omitempty"`
}

// ResponseAction is a machine-executable reply the hub suggests for a
// notification.
type ResponseAction struct {
	Type        string          `json:"type"`
	Method      string          `json:"method"`
	Path        string          `json:"path"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
}

// ChatMessage is the body of chat.user channel messages.
type ChatMessage struct {
	Text      string `json:"text"`
	RequestID string `json:"request_id,omitempty"`
}

// SnapshotRequest is the body of snapshot.request channel messages.
type SnapshotRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

// ProfileUpdate is the body of agent.profile.update channel messages.
type ProfileUpdate struct {
	RequestID string `json:"request_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
}

// SignalQuery selects signals for SessionSignals. A nil AfterID means
// an unbounded fetch from the start of the session's retained history.
type SignalQuery struct {
	AfterID       *int64
	Limit         int
	ExcludeSender string
}
