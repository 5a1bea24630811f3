// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openclaw-foundation/clawbridge/hub"
	"github.com/openclaw-foundation/clawbridge/lib/clawcli"
	"github.com/openclaw-foundation/clawbridge/lib/clock"
)

// fakeHub records hub calls and serves queued signal batches. The
// heartbeat counter is mutex-guarded because the heartbeat loop runs
// on its own goroutine.
type fakeHub struct {
	queries    []hub.SignalQuery
	batches    [][]hub.Signal
	signalsErr error
	published  []publishedMessage
	readMarks  []int64

	mu           sync.Mutex
	heartbeats   int
	heartbeatErr error
}

type publishedMessage struct {
	sessionID   int64
	channelType string
	requestID   string
	payload     any
}

func (f *fakeHub) SessionSignals(ctx context.Context, sessionID int64, query hub.SignalQuery) ([]hub.Signal, error) {
	f.queries = append(f.queries, query)
	if f.signalsErr != nil {
		return nil, f.signalsErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeHub) PublishChannelMessage(ctx context.Context, sessionID int64, channelType, requestID string, payload any) error {
	f.published = append(f.published, publishedMessage{sessionID, channelType, requestID, payload})
	return nil
}

func (f *fakeHub) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	f.readMarks = append(f.readMarks, notificationID)
	return nil
}

func (f *fakeHub) SubmitHeartbeat(ctx context.Context, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return f.heartbeatErr
}

func (f *fakeHub) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

// fakeChat records requests and returns a fixed result per request id.
type fakeChat struct {
	requests []clawcli.ChatRequest
	result   func(request clawcli.ChatRequest) clawcli.ChatResult
}

func (f *fakeChat) Run(ctx context.Context, request clawcli.ChatRequest) clawcli.ChatResult {
	f.requests = append(f.requests, request)
	if f.result != nil {
		return f.result(request)
	}
	return clawcli.ChatResult{
		RequestID:  request.RequestID,
		RunID:      "run-1",
		Status:     clawcli.StatusOK,
		TextSource: clawcli.TextSourceWait,
		Content:    "done",
	}
}

type testFixture struct {
	runtime *Runtime
	hub     *fakeHub
	chat    *fakeChat
	clock   *clock.FakeClock
	state   *SessionState
}

func newFixture(t *testing.T, mutate func(*Config)) *testFixture {
	t.Helper()
	fixture := &testFixture{
		hub:   &fakeHub{},
		chat:  &fakeChat{},
		clock: clock.Fake(time.Unix(1_700_000_000, 0)),
	}

	config := Config{
		Hub:             fixture.hub,
		Chat:            fixture.chat,
		HandleChat:      true,
		HandleSnapshots: true,
		PollLimit:       100,
		PollInterval:    15 * time.Second,
		DedupWindow:     24 * time.Hour,
		Profile:         clawcli.AgentProfile{ID: "agent-1", Name: "Pincer", Type: "openclaw"},
		Clock:           fixture.clock,
	}
	if mutate != nil {
		mutate(&config)
	}

	runtime, err := NewRuntime(config)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	fixture.runtime = runtime
	fixture.state = NewSessionState(7)
	return fixture
}

func notificationSignal(signalID, notificationID int64, channelType string, isRead bool) hub.Signal {
	payload := fmt.Sprintf(`{"id":%d,"notification_type":"mention","message":"you were mentioned","is_read":%t}`,
		notificationID, isRead)
	return hub.Signal{
		ID:        signalID,
		SessionID: 7,
		Sender:    hub.SenderSystem,
		Type:      "message",
		Payload:   hub.ChannelMessage{Type: channelType, Payload: []byte(payload)},
	}
}
