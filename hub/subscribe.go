// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ConnectionState describes the push subscription's link to the hub.
type ConnectionState string

const (
	StateUnknown      ConnectionState = "unknown"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
)

// Event is one item delivered by a push subscription. Exactly one of
// Signal, Notification, or State is set.
type Event struct {
	// Signal is a realtime signal delivered over the push path.
	Signal *Signal
	// Notification is a notification delivered on the subscription's
	// dedicated notification stream, independent of the signal
	// envelope carrying the same logical notification.
	Notification *Notification
	// State reports a connection state change.
	State ConnectionState
}

// streamLine is the wire shape of one line of the subscription stream.
type streamLine struct {
	Type         string        `json:"type"`
	Signal       *Signal       `json:"signal,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// Subscription is a live push subscription for one session. Events are
// delivered on Events() until the stream ends or Close is called; the
// channel is then closed after a final disconnected state event.
type Subscription struct {
	events chan Event
	cancel context.CancelFunc
}

// Events returns the subscription's event channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close terminates the subscription. The event channel closes once the
// reader goroutine drains.
func (s *Subscription) Close() {
	s.cancel()
}

// Subscribe opens the push subscription stream for a session. The hub
// serves newline-delimited JSON; each line is a signal, a
// notification, or a keepalive ping. Malformed lines are skipped. The
// returned subscription owns the response body and a reader goroutine.
func (c *Client) Subscribe(ctx context.Context, sessionID int64) (*Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	requestURL := fmt.Sprintf("%s/sessions/%d/subscribe", c.baseURL, sessionID)
	request, err := http.NewRequestWithContext(streamCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("hub: creating subscribe request: %w", err)
	}
	request.Header.Set("Accept", "application/x-ndjson")
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("hub: subscribe request failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		io.Copy(io.Discard, response.Body)
		response.Body.Close()
		cancel()
		return nil, &Error{Operation: "subscribe", StatusCode: response.StatusCode}
	}

	subscription := &Subscription{
		events: make(chan Event, 16),
		cancel: cancel,
	}
	go subscription.read(streamCtx, c, response.Body)
	return subscription, nil
}

// read consumes the stream until EOF or cancellation. It always emits
// a final disconnected state and closes the event channel, so a
// consumer ranging over Events observes the full lifecycle.
func (s *Subscription) read(ctx context.Context, c *Client, body io.ReadCloser) {
	defer close(s.events)
	defer body.Close()

	s.deliver(ctx, Event{State: StateConnected})

	scanner := bufio.NewScanner(body)
	// Signal payloads can carry large chat text; the default 64KB
	// token limit is too small for a worst-case line.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var parsed streamLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			c.logger.Warn("skipping malformed subscription line", "error", err)
			continue
		}

		switch {
		case parsed.Signal != nil:
			if !s.deliver(ctx, Event{Signal: parsed.Signal}) {
				return
			}
		case parsed.Notification != nil:
			if !s.deliver(ctx, Event{Notification: parsed.Notification}) {
				return
			}
		default:
			// Keepalive ping or an event kind this version does not
			// know. Both are safe to ignore.
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("subscription stream ended", "error", err)
	}
	s.deliver(ctx, Event{State: StateDisconnected})
}

// deliver sends one event unless the subscription has been cancelled.
func (s *Subscription) deliver(ctx context.Context, event Event) bool {
	select {
	case s.events <- event:
		return true
	case <-ctx.Done():
		// Still try to hand the event to a consumer that is already
		// waiting, but never block on a departed one.
		select {
		case s.events <- event:
		default:
		}
		return false
	}
}
