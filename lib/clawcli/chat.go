// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package clawcli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openclaw-foundation/clawbridge/lib/transcript"
)

// FailedRunMessage is the only content published when a chat run fails
// internally. It deliberately identifies nothing about the cause: run
// errors can embed command lines, file paths, and credential material.
const FailedRunMessage = "Something went wrong while preparing a reply. Please try again."

// Text sources for a chat result.
const (
	TextSourceWait    = "wait"
	TextSourceHistory = "session_history"
	TextSourceError   = "error"
)

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ChatRequest is one request/response cycle against the agent.
type ChatRequest struct {
	SessionID int64
	RequestID string
	UserText  string
}

// ChatResult is the outcome of one chat run. Status is "ok" or
// "error"; a result is always produced, never an error value, because
// every outcome must be publishable.
type ChatResult struct {
	RequestID  string `json:"request_id"`
	RunID      string `json:"run_id,omitempty"`
	Status     string `json:"status"`
	TextSource string `json:"text_source"`
	Content    string `json:"content"`
}

// ChatConfig configures a Chat.
type ChatConfig struct {
	// Binary is the resolved agent executable.
	Binary string
	// AgentKey and ProviderName build the transcript session key.
	AgentKey     string
	ProviderName string
	// Transcripts is the fallback text source when the wait phase
	// returns nothing visible. Nil disables the fallback.
	Transcripts *transcript.Store
	// WaitTimeout bounds the wait phase. Zero means DefaultWaitTimeout.
	WaitTimeout time.Duration
	// Runner executes CLI invocations. Nil means ExecRunner.
	Runner Runner
	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultWaitTimeout bounds how long one run may stay in the wait
// phase before it is abandoned and reported as failed.
const DefaultWaitTimeout = 10 * time.Minute

// Chat drives request/response cycles against the agent process.
type Chat struct {
	config ChatConfig
	runner Runner
	logger *slog.Logger
}

// NewChat creates a Chat.
func NewChat(config ChatConfig) *Chat {
	runner := config.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = DefaultWaitTimeout
	}
	return &Chat{config: config, runner: runner, logger: logger}
}

// Run performs one chat cycle: start the run, wait for it, and choose
// the reply text. Every internal failure produces a result carrying
// FailedRunMessage; the cause is logged here and goes no further.
func (c *Chat) Run(ctx context.Context, request ChatRequest) ChatResult {
	result, err := c.run(ctx, request)
	if err != nil {
		c.logger.Error("chat run failed",
			"session_id", request.SessionID,
			"request_id", request.RequestID,
			"error", err)
		return ChatResult{
			RequestID:  request.RequestID,
			Status:     StatusError,
			TextSource: TextSourceError,
			Content:    FailedRunMessage,
		}
	}
	return result
}

func (c *Chat) run(ctx context.Context, request ChatRequest) (ChatResult, error) {
	if c.config.Binary == "" {
		return ChatResult{}, fmt.Errorf("clawcli: no agent binary resolved")
	}

	runID, err := c.startRun(ctx, request)
	if err != nil {
		return ChatResult{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.config.WaitTimeout)
	defer cancel()

	content, err := c.waitRun(waitCtx, runID)
	if err != nil {
		return ChatResult{}, err
	}

	result := ChatResult{
		RequestID:  request.RequestID,
		RunID:      runID,
		Status:     StatusOK,
		TextSource: TextSourceWait,
		Content:    transcript.StripReplyMarker(content),
	}

	// A wait response that is empty, or that was only a reply-control
	// tag, means the agent wrote its reply to the transcript instead.
	if strings.TrimSpace(content) == "" || transcript.IsMarkerOnly(content) {
		if text, ok := c.historyText(request.SessionID); ok {
			result.TextSource = TextSourceHistory
			result.Content = text
		}
	}
	return result, nil
}

// startRun starts one agent run and resolves the run id. The CLI may
// echo the id at the top level, nested under a result wrapper, or
// both; the top-level field always wins when both are present.
func (c *Chat) startRun(ctx context.Context, request ChatRequest) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, c.config.Binary,
		"agent", "run",
		"--session", fmt.Sprintf("%d", request.SessionID),
		"--request", request.RequestID,
		"--message", request.UserText,
		"--json")
	if err != nil {
		return "", fmt.Errorf("clawcli: run start: %w", err)
	}

	raw, ok := firstJSON(stdout, stderr)
	if !ok {
		return "", fmt.Errorf("clawcli: run start produced no JSON")
	}

	var response struct {
		RunID  string `json:"runId"`
		Result struct {
			RunID string `json:"runId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return "", fmt.Errorf("clawcli: parsing run start response: %w", err)
	}

	runID := response.RunID
	if runID == "" {
		runID = response.Result.RunID
	}
	if runID == "" {
		return "", fmt.Errorf("clawcli: run start response carried no run id")
	}
	return runID, nil
}

// waitRun waits for the run to finish and returns its content.
func (c *Chat) waitRun(ctx context.Context, runID string) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, c.config.Binary,
		"agent", "wait", "--run", runID, "--json")
	if err != nil {
		return "", fmt.Errorf("clawcli: run wait: %w", err)
	}

	raw, ok := firstJSON(stdout, stderr)
	if !ok {
		return "", fmt.Errorf("clawcli: run wait produced no JSON")
	}

	var response struct {
		Status  string `json:"status"`
		Content string `json:"content"`
		Result  struct {
			Status  string `json:"status"`
			Content string `json:"content"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return "", fmt.Errorf("clawcli: parsing run wait response: %w", err)
	}

	status := response.Status
	if status == "" {
		status = response.Result.Status
	}
	if status != "" && status != StatusOK {
		return "", fmt.Errorf("clawcli: run %s finished with status %q", runID, status)
	}

	if response.Content != "" {
		return response.Content, nil
	}
	return response.Result.Content, nil
}

// historyText reads the latest visible assistant text from the
// persisted session transcript.
func (c *Chat) historyText(sessionID int64) (string, bool) {
	if c.config.Transcripts == nil {
		return "", false
	}
	key := transcript.SessionKey(c.config.AgentKey, c.config.ProviderName, sessionID)
	text, ok := c.config.Transcripts.LatestAssistantText(key)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
