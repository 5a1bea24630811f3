// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/openclaw-foundation/clawbridge/hub"
	"github.com/openclaw-foundation/clawbridge/lib/clawcli"
)

// An agent-only push delivery must not advance the poll cursor: the
// first poll still asks for the full backlog and surfaces the earlier
// non-agent signal.
func TestPollCursorIgnoresAgentSignals(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	agentSignal := hub.Signal{
		ID: 10, SessionID: 7, Sender: hub.SenderAgent, Type: "message",
		Payload: hub.ChannelMessage{Type: hub.ChannelChatAgentDelta},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, agentSignal, SourcePush)

	fixture.hub.batches = [][]hub.Signal{
		{notificationSignal(9, 9, hub.ChannelNotificationCreated, false)},
	}
	if err := fixture.runtime.PollSessionSignals(ctx, fixture.state, SourcePoll); err != nil {
		t.Fatalf("PollSessionSignals failed: %v", err)
	}

	if len(fixture.hub.queries) != 1 {
		t.Fatalf("got %d poll queries", len(fixture.hub.queries))
	}
	query := fixture.hub.queries[0]
	if query.AfterID != nil {
		t.Errorf("first poll AfterID = %d, want absent", *query.AfterID)
	}
	if query.ExcludeSender != hub.SenderAgent {
		t.Errorf("ExcludeSender = %q", query.ExcludeSender)
	}

	// The backfilled non-agent signal was handled as a notification.
	if len(fixture.chat.requests) != 1 {
		t.Fatalf("got %d chat runs, want 1", len(fixture.chat.requests))
	}
	if fixture.chat.requests[0].RequestID != "notification-9" {
		t.Errorf("RequestID = %q", fixture.chat.requests[0].RequestID)
	}

	if fixture.state.LastSignalID != 10 {
		t.Errorf("LastSignalID = %d, want 10", fixture.state.LastSignalID)
	}
	if fixture.state.LastNonAgentSignalID != 9 {
		t.Errorf("LastNonAgentSignalID = %d, want 9", fixture.state.LastNonAgentSignalID)
	}

	// The next poll is bounded by the non-agent cursor.
	fixture.runtime.PollSessionSignals(ctx, fixture.state, SourcePoll)
	second := fixture.hub.queries[1]
	if second.AfterID == nil || *second.AfterID != 9 {
		t.Errorf("second poll AfterID = %v, want 9", second.AfterID)
	}
}

// Repeated 429s inside one log interval record a single timestamp; a
// poll past the interval records a fresh one.
func TestPollRateLimitLogThrottle(t *testing.T) {
	fixture := newFixture(t, nil)
	fixture.hub.signalsErr = &hub.Error{Operation: "sessionSignals", StatusCode: http.StatusTooManyRequests}
	ctx := context.Background()

	fixture.runtime.PollSessionSignals(ctx, fixture.state, SourcePoll)
	first := fixture.state.LastRateLimitLogAt
	if first.IsZero() {
		t.Fatal("first throttled poll should record a log timestamp")
	}

	fixture.clock.Advance(30 * time.Second)
	fixture.runtime.PollSessionSignals(ctx, fixture.state, SourcePoll)
	if !fixture.state.LastRateLimitLogAt.Equal(first) {
		t.Error("log timestamp moved within the interval")
	}

	fixture.clock.Advance(31 * time.Second)
	fixture.runtime.PollSessionSignals(ctx, fixture.state, SourcePoll)
	if fixture.state.LastRateLimitLogAt.Equal(first) {
		t.Error("log timestamp should advance once the interval has passed")
	}
}

func TestNotificationRunMarksRead(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := notificationSignal(20, 4, hub.ChannelNotificationCreated, false)
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 1 {
		t.Fatalf("got %d chat runs, want 1", len(fixture.chat.requests))
	}
	if fixture.chat.requests[0].RequestID != "notification-4" {
		t.Errorf("RequestID = %q", fixture.chat.requests[0].RequestID)
	}
	if len(fixture.hub.readMarks) != 1 || fixture.hub.readMarks[0] != 4 {
		t.Errorf("readMarks = %v, want [4]", fixture.hub.readMarks)
	}
	if len(fixture.hub.published) != 1 || fixture.hub.published[0].channelType != hub.ChannelChatAgent {
		t.Errorf("published = %+v", fixture.hub.published)
	}
}

func TestNotificationUpdatedDoesNotRun(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := notificationSignal(21, 5, hub.ChannelNotificationUpdated, true)
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 0 {
		t.Errorf("got %d chat runs, want 0", len(fixture.chat.requests))
	}
	if len(fixture.hub.readMarks) != 0 {
		t.Errorf("readMarks = %v, want none", fixture.hub.readMarks)
	}
}

func TestReadNotificationDoesNotRun(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := notificationSignal(22, 6, hub.ChannelNotificationCreated, true)
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 0 {
		t.Errorf("got %d chat runs, want 0", len(fixture.chat.requests))
	}
}

func TestFailedRunLeavesUnread(t *testing.T) {
	fixture := newFixture(t, nil)
	fixture.chat.result = func(request clawcli.ChatRequest) clawcli.ChatResult {
		return clawcli.ChatResult{
			RequestID:  request.RequestID,
			Status:     clawcli.StatusError,
			TextSource: clawcli.TextSourceError,
			Content:    clawcli.FailedRunMessage,
		}
	}
	ctx := context.Background()

	signal := notificationSignal(23, 8, hub.ChannelNotificationCreated, false)
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 1 {
		t.Fatalf("got %d chat runs, want 1", len(fixture.chat.requests))
	}
	if len(fixture.hub.readMarks) != 0 {
		t.Errorf("failed run must not mark read, got %v", fixture.hub.readMarks)
	}
	// The fixed failure message is still published.
	if len(fixture.hub.published) != 1 {
		t.Fatalf("published = %+v", fixture.hub.published)
	}
	result, ok := fixture.hub.published[0].payload.(clawcli.ChatResult)
	if !ok || result.Content != clawcli.FailedRunMessage {
		t.Errorf("published payload = %+v", fixture.hub.published[0].payload)
	}
}

// The same physical notification observed by both delivery paths
// triggers exactly one run.
func TestNotificationDedupAcrossPaths(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := notificationSignal(30, 12, hub.ChannelNotificationCreated, false)
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)
	fixture.runtime.HandleSubscriptionNotification(ctx, fixture.state, hub.Notification{
		ID: 12, NotificationType: "mention", Message: "you were mentioned", IsRead: false,
	})

	if len(fixture.chat.requests) != 1 {
		t.Errorf("got %d chat runs, want 1", len(fixture.chat.requests))
	}
	if len(fixture.hub.readMarks) != 1 {
		t.Errorf("readMarks = %v, want one", fixture.hub.readMarks)
	}
}

func TestChatUserRunsAgent(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := hub.Signal{
		ID: 40, SessionID: 7, Sender: hub.SenderBrowser, Type: "message",
		Payload: hub.ChannelMessage{
			Type:    hub.ChannelChatUser,
			Payload: []byte(`{"text":"hello agent","request_id":"req-40"}`),
		},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 1 {
		t.Fatalf("got %d chat runs", len(fixture.chat.requests))
	}
	request := fixture.chat.requests[0]
	if request.UserText != "hello agent" || request.RequestID != "req-40" {
		t.Errorf("request = %+v", request)
	}
	if len(fixture.hub.published) != 1 || fixture.hub.published[0].requestID != "req-40" {
		t.Errorf("published = %+v", fixture.hub.published)
	}
}

func TestChatDisabledRoutesToCallback(t *testing.T) {
	var unhandled []hub.Signal
	fixture := newFixture(t, func(config *Config) {
		config.HandleChat = false
		config.OnUnhandledSignal = func(state *SessionState, signal hub.Signal) {
			unhandled = append(unhandled, signal)
		}
	})
	ctx := context.Background()

	signal := hub.Signal{
		ID: 41, SessionID: 7, Sender: hub.SenderBrowser, Type: "message",
		Payload: hub.ChannelMessage{Type: hub.ChannelChatUser, Payload: []byte(`{"text":"hi"}`)},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 0 {
		t.Errorf("chat disabled but agent ran %d times", len(fixture.chat.requests))
	}
	if len(unhandled) != 1 || unhandled[0].ID != 41 {
		t.Errorf("unhandled = %+v", unhandled)
	}
	// Cursors still advance for unhandled signals.
	if fixture.state.LastNonAgentSignalID != 41 {
		t.Errorf("LastNonAgentSignalID = %d", fixture.state.LastNonAgentSignalID)
	}
}

func TestSnapshotDisabledRoutesToCallback(t *testing.T) {
	var unhandled []hub.Signal
	fixture := newFixture(t, func(config *Config) {
		config.HandleSnapshots = false
		config.OnUnhandledSignal = func(state *SessionState, signal hub.Signal) {
			unhandled = append(unhandled, signal)
		}
	})
	ctx := context.Background()

	signal := hub.Signal{
		ID: 42, SessionID: 7, Sender: hub.SenderSystem, Type: "message",
		Payload: hub.ChannelMessage{Type: hub.ChannelSnapshotRequest, Payload: []byte(`{"request_id":"snap-1"}`)},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 0 {
		t.Errorf("snapshots disabled but agent ran")
	}
	if len(unhandled) != 1 {
		t.Errorf("unhandled = %+v", unhandled)
	}
}

func TestSnapshotRequestPublishesResult(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := hub.Signal{
		ID: 43, SessionID: 7, Sender: hub.SenderSystem, Type: "message",
		Payload: hub.ChannelMessage{
			Type:    hub.ChannelSnapshotRequest,
			Payload: []byte(`{"request_id":"snap-2","prompt":"summarize the session"}`),
		},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.hub.published) != 1 {
		t.Fatalf("published = %+v", fixture.hub.published)
	}
	message := fixture.hub.published[0]
	if message.channelType != hub.ChannelSnapshotResult || message.requestID != "snap-2" {
		t.Errorf("published = %+v", message)
	}
}

func TestUnknownChannelRoutesToCallback(t *testing.T) {
	var unhandled []hub.Signal
	fixture := newFixture(t, func(config *Config) {
		config.OnUnhandledSignal = func(state *SessionState, signal hub.Signal) {
			unhandled = append(unhandled, signal)
		}
	})
	ctx := context.Background()

	signal := hub.Signal{
		ID: 44, SessionID: 7, Sender: hub.SenderSystem, Type: "message",
		Payload: hub.ChannelMessage{Type: "board.column.moved", Payload: []byte(`{}`)},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(unhandled) != 1 {
		t.Errorf("unknown channel should hit the callback, got %+v", unhandled)
	}
}

func TestProfileUpdateMissingRequestID(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := hub.Signal{
		ID: 50, SessionID: 7, Sender: hub.SenderBrowser, Type: "message",
		Payload: hub.ChannelMessage{
			Type:    hub.ChannelProfileUpdate,
			Payload: []byte(`{"name":"NewName"}`),
		},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.hub.published) != 1 {
		t.Fatalf("published = %+v", fixture.hub.published)
	}
	message := fixture.hub.published[0]
	if message.channelType != hub.ChannelProfileError {
		t.Errorf("channelType = %q", message.channelType)
	}
	body, ok := message.payload.(profileError)
	if !ok {
		t.Fatalf("payload = %T", message.payload)
	}
	if body.Code != "invalid_request" || body.Error != "request_id is required" {
		t.Errorf("body = %+v", body)
	}
	// The profile is unchanged and the signal still counted.
	if fixture.runtime.Profile().Name != "Pincer" {
		t.Errorf("profile mutated: %+v", fixture.runtime.Profile())
	}
	if fixture.state.LastSignalID != 50 {
		t.Errorf("LastSignalID = %d", fixture.state.LastSignalID)
	}
}

func TestProfileUpdateApplies(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	signal := hub.Signal{
		ID: 51, SessionID: 7, Sender: hub.SenderBrowser, Type: "message",
		Payload: hub.ChannelMessage{
			Type:    hub.ChannelProfileUpdate,
			Payload: []byte(`{"request_id":"prof-1","name":"Renamed","emoji":"🦞"}`),
		},
	}
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	profile := fixture.runtime.Profile()
	if profile.Name != "Renamed" || profile.Emoji != "🦞" {
		t.Errorf("profile = %+v", profile)
	}
	if len(fixture.hub.published) != 1 {
		t.Fatalf("published = %+v", fixture.hub.published)
	}
	message := fixture.hub.published[0]
	if message.channelType != hub.ChannelProfileUpdated || message.requestID != "prof-1" {
		t.Errorf("published = %+v", message)
	}
}

func TestClosedSessionIgnoresSignals(t *testing.T) {
	fixture := newFixture(t, nil)
	fixture.state.Close("shutdown")
	ctx := context.Background()

	signal := notificationSignal(60, 60, hub.ChannelNotificationCreated, false)
	fixture.runtime.HandleSignal(ctx, fixture.state, signal, SourcePush)

	if len(fixture.chat.requests) != 0 || fixture.state.LastSignalID != 0 {
		t.Error("closed session must ignore signals")
	}
}

func TestProcessEvents(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan hub.Event, 8)

	events <- hub.Event{State: hub.StateConnected}
	signal := notificationSignal(70, 70, hub.ChannelNotificationCreated, false)
	events <- hub.Event{Signal: &signal}
	close(events)

	if err := fixture.runtime.ProcessEvents(ctx, fixture.state, events); err != nil {
		t.Fatalf("ProcessEvents failed: %v", err)
	}
	cancel()

	if !fixture.state.SawConnectedState {
		t.Error("SawConnectedState should be set")
	}
	if fixture.state.ConnectionState != hub.StateDisconnected {
		t.Errorf("ConnectionState = %q after stream close", fixture.state.ConnectionState)
	}
	if len(fixture.chat.requests) != 1 {
		t.Errorf("got %d chat runs, want 1", len(fixture.chat.requests))
	}
}
