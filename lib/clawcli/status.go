// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package clawcli

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Metrics is the canonical flat telemetry record carried in heartbeat
// bodies. Both status output shapes the CLI produces normalize to this
// one field set; all percentage fields are integers in 0..100.
type Metrics struct {
	TokensUsed         int64           `json:"tokens_used,omitempty"`
	TokensLimit        int64           `json:"tokens_limit,omitempty"`
	CacheReadTokens    int64           `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens   int64           `json:"cache_write_tokens,omitempty"`
	ContextPercent     int             `json:"context_percent,omitempty"`
	UsageWindowPercent int             `json:"usage_window_percent,omitempty"`
	UsageDayPercent    int             `json:"usage_day_percent,omitempty"`
	QueueDepth         int             `json:"queue_depth,omitempty"`
	AuthOK             bool            `json:"auth_ok"`
	AuthMethod         string          `json:"auth_method,omitempty"`
	RuntimeMode        string          `json:"runtime_mode,omitempty"`
	ThinkingMode       string          `json:"thinking_mode,omitempty"`
	Tools              map[string]bool `json:"tools,omitempty"`
	SessionKey         string          `json:"session_key,omitempty"`
	AgentName          string          `json:"agent_name,omitempty"`
	AgentEmoji         string          `json:"agent_emoji,omitempty"`
}

// statusSnapshot is the CLI's structured status shape. Percentages may
// arrive as fractions (0.42) or literal percents (42); percentValue
// absorbs the difference.
type statusSnapshot struct {
	Tokens struct {
		Used  int64 `json:"used"`
		Limit int64 `json:"limit"`
	} `json:"tokens"`
	Cache struct {
		Read  int64 `json:"read"`
		Write int64 `json:"write"`
	} `json:"cache"`
	Context struct {
		Percent float64 `json:"percent"`
	} `json:"context"`
	Usage struct {
		Window struct {
			Percent float64 `json:"percent"`
		} `json:"window"`
		Day struct {
			Percent float64 `json:"percent"`
		} `json:"day"`
	} `json:"usage"`
	Queue struct {
		Depth int `json:"depth"`
	} `json:"queue"`
	Auth struct {
		OK     bool   `json:"ok"`
		Method string `json:"method"`
	} `json:"auth"`
	Runtime struct {
		Mode string `json:"mode"`
	} `json:"runtime"`
	Thinking struct {
		Mode string `json:"mode"`
	} `json:"thinking"`
	Tools   map[string]bool `json:"tools"`
	Session struct {
		Key string `json:"key"`
	} `json:"session"`
}

// ParseStatus normalizes one status output into Metrics. Structured
// JSON is tried first (on either stream's text, whichever the caller
// passes); everything else is treated as "Label: value" status lines.
func ParseStatus(output string) Metrics {
	if raw, ok := scanJSON([]byte(output)); ok {
		var snapshot statusSnapshot
		if err := json.Unmarshal(raw, &snapshot); err == nil {
			return snapshot.metrics()
		}
	}
	return parseStatusLines(output)
}

func (s statusSnapshot) metrics() Metrics {
	return Metrics{
		TokensUsed:         s.Tokens.Used,
		TokensLimit:        s.Tokens.Limit,
		CacheReadTokens:    s.Cache.Read,
		CacheWriteTokens:   s.Cache.Write,
		ContextPercent:     percentValue(s.Context.Percent),
		UsageWindowPercent: percentValue(s.Usage.Window.Percent),
		UsageDayPercent:    percentValue(s.Usage.Day.Percent),
		QueueDepth:         s.Queue.Depth,
		AuthOK:             s.Auth.OK,
		AuthMethod:         s.Auth.Method,
		RuntimeMode:        s.Runtime.Mode,
		ThinkingMode:       s.Thinking.Mode,
		Tools:              s.Tools,
		SessionKey:         s.Session.Key,
	}
}

// parseStatusLines parses the human-readable status-line bundle. Lines
// with unrecognized prefixes are ignored; each recognized prefix maps
// to the same fields the structured shape fills.
func parseStatusLines(output string) Metrics {
	var metrics Metrics

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(label) {
		case "Tokens":
			metrics.TokensUsed, metrics.TokensLimit = parseUsedLimit(value)
		case "Cache":
			metrics.CacheReadTokens, metrics.CacheWriteTokens = parseCache(value)
		case "Usage":
			metrics.UsageWindowPercent, metrics.UsageDayPercent = parseUsage(value)
		case "Context":
			metrics.ContextPercent = parsePercent(value)
		case "Runtime":
			metrics.RuntimeMode, metrics.ThinkingMode = parseRuntime(value)
		case "Tools":
			metrics.Tools = parseTools(value)
		case "Session":
			metrics.SessionKey = value
		case "Queue depth":
			metrics.QueueDepth = int(parseNumber(value))
		case "Auth":
			metrics.AuthOK, metrics.AuthMethod = parseAuth(value)
		}
	}
	return metrics
}

// parseUsedLimit parses "12,345/200,000" (limit optional).
func parseUsedLimit(value string) (used, limit int64) {
	usedText, limitText, found := strings.Cut(value, "/")
	used = int64(parseNumber(usedText))
	if found {
		limit = int64(parseNumber(limitText))
	}
	return used, limit
}

// parseCache parses "read 1200, write 340" in either order.
func parseCache(value string) (read, write int64) {
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '|' }) {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "read":
			read = int64(parseNumber(fields[1]))
		case "write":
			write = int64(parseNumber(fields[1]))
		}
	}
	return read, write
}

// parseUsage parses "Window 42% | Day 13%".
func parseUsage(value string) (window, day int) {
	for _, part := range strings.Split(value, "|") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) != 2 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "window":
			window = parsePercent(fields[1])
		case "day":
			day = parsePercent(fields[1])
		}
	}
	return window, day
}

// parseRuntime parses "local | Think: high".
func parseRuntime(value string) (mode, thinking string) {
	modePart, rest, found := strings.Cut(value, "|")
	mode = strings.TrimSpace(modePart)
	if !found {
		return mode, ""
	}
	if _, thinkValue, ok := strings.Cut(rest, ":"); ok {
		thinking = strings.TrimSpace(thinkValue)
	}
	return mode, thinking
}

// parseTools parses "browser=on, exec=off, canvas". A bare name means
// enabled.
func parseTools(value string) map[string]bool {
	tools := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, state, found := strings.Cut(part, "=")
		if !found {
			tools[name] = true
			continue
		}
		switch strings.ToLower(strings.TrimSpace(state)) {
		case "on", "true", "yes", "enabled":
			tools[strings.TrimSpace(name)] = true
		default:
			tools[strings.TrimSpace(name)] = false
		}
	}
	if len(tools) == 0 {
		return nil
	}
	return tools
}

// parseAuth parses "ok (oauth)" or "failed".
func parseAuth(value string) (ok bool, method string) {
	lower := strings.ToLower(value)
	ok = strings.HasPrefix(lower, "ok")
	if open := strings.Index(value, "("); open >= 0 {
		if close := strings.Index(value[open:], ")"); close > 0 {
			method = value[open+1 : open+close]
		}
	}
	return ok, method
}

// parsePercent parses a percentage expressed as "42%", "42", or a
// fraction "0.42", normalizing to an integer in 0..100.
func parsePercent(value string) int {
	value = strings.TrimSuffix(strings.TrimSpace(value), "%")
	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return percentValue(number)
}

// percentValue normalizes a numeric percentage: values in (0, 1] are
// fractions, everything else is already a percent. The result is
// clamped to 0..100.
func percentValue(number float64) int {
	if number > 0 && number <= 1 {
		number *= 100
	}
	percent := int(math.Round(number))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// parseNumber parses an integer that may carry thousands separators.
func parseNumber(value string) float64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return number
}
