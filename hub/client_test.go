// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestClient starts an httptest server with the given handler and
// returns a Client pointed at it. The server shuts down with the test.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Token:   "test-token",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestSessionSignals(t *testing.T) {
	var gotQuery string
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/sessions/7/signals" {
			t.Errorf("path = %q", request.URL.Path)
		}
		gotQuery = request.URL.RawQuery
		gotAuth = request.Header.Get("Authorization")
		json.NewEncoder(writer).Encode(map[string]any{
			"signals": []map[string]any{
				{"id": 9, "session_id": 7, "sender": "system", "type": "message",
					"payload": map[string]any{"type": "notification.created"}},
			},
		})
	}))

	afterID := int64(5)
	signals, err := client.SessionSignals(context.Background(), 7, SignalQuery{
		AfterID:       &afterID,
		Limit:         100,
		ExcludeSender: SenderAgent,
	})
	if err != nil {
		t.Fatalf("SessionSignals failed: %v", err)
	}
	if len(signals) != 1 || signals[0].ID != 9 {
		t.Fatalf("signals = %+v", signals)
	}
	if signals[0].Payload.Type != ChannelNotificationCreated {
		t.Errorf("payload type = %q", signals[0].Payload.Type)
	}
	if !strings.Contains(gotQuery, "after_id=5") {
		t.Errorf("query missing after_id: %q", gotQuery)
	}
	if !strings.Contains(gotQuery, "exclude_sender=agent") {
		t.Errorf("query missing exclude_sender: %q", gotQuery)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestSessionSignalsUnboundedOmitsCursor(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotQuery = request.URL.RawQuery
		writer.Write([]byte(`{"signals":[]}`))
	}))

	if _, err := client.SessionSignals(context.Background(), 1, SignalQuery{Limit: 50}); err != nil {
		t.Fatalf("SessionSignals failed: %v", err)
	}
	if strings.Contains(gotQuery, "after_id") {
		t.Errorf("unbounded fetch should omit after_id, got query %q", gotQuery)
	}
}

func TestPublishChannelMessage(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/sessions/3/channel" {
			t.Errorf("path = %q", request.URL.Path)
		}
		if err := json.NewDecoder(request.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding publish body: %v", err)
		}
		writer.WriteHeader(http.StatusAccepted)
	}))

	err := client.PublishChannelMessage(context.Background(), 3, ChannelChatAgent, "req-1",
		map[string]string{"text": "done"})
	if err != nil {
		t.Fatalf("PublishChannelMessage failed: %v", err)
	}
	if gotBody["type"] != "chat.agent" || gotBody["request_id"] != "req-1" {
		t.Errorf("body = %+v", gotBody)
	}
	payload, ok := gotBody["payload"].(map[string]any)
	if !ok || payload["text"] != "done" {
		t.Errorf("payload = %+v", gotBody["payload"])
	}
}

func TestMarkNotificationRead(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotPath = request.URL.Path
		writer.WriteHeader(http.StatusNoContent)
	}))

	if err := client.MarkNotificationRead(context.Background(), 88); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	if gotPath != "/notifications/88/read" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestErrorRedaction(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusForbidden)
		writer.Write([]byte(`{"error":{"message":"bad credentials","token":"tok-secret-value",` +
			`"nested":{"authorization":"Bearer leaked"}},"status":403}`))
	}))

	_, err := client.SessionSignals(context.Background(), 1, SignalQuery{})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "sessionSignals failed with status 403." {
		t.Errorf("error message = %q", err.Error())
	}
	for _, leaked := range []string{"tok-secret-value", "authorization", "bad credentials"} {
		if strings.Contains(err.Error(), leaked) {
			t.Errorf("error leaks %q", leaked)
		}
	}

	var hubErr *Error
	if !errors.As(err, &hubErr) {
		t.Fatal("error should be a *Error")
	}
	if hubErr.StatusCode != http.StatusForbidden || hubErr.Operation != "sessionSignals" {
		t.Errorf("hubErr = %+v", hubErr)
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Error("IsStatus should match 403")
	}
}

func TestSubmitHeartbeat(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/agent/heartbeat" {
			t.Errorf("path = %q", request.URL.Path)
		}
		json.NewDecoder(request.Body).Decode(&gotBody)
		writer.WriteHeader(http.StatusOK)
	}))

	err := client.SubmitHeartbeat(context.Background(), map[string]any{"tokens_used": 120})
	if err != nil {
		t.Fatalf("SubmitHeartbeat failed: %v", err)
	}
	if gotBody["tokens_used"] != float64(120) {
		t.Errorf("body = %+v", gotBody)
	}
}
