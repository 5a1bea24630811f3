// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package clawcli

import (
	"context"

	"github.com/openclaw-foundation/clawbridge/lib/hostinfo"
)

// AgentProfile identifies the bridged agent in heartbeat bodies.
type AgentProfile struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type,omitempty"`
	Emoji string `json:"emoji,omitempty"`
}

// HeartbeatBody is the point-in-time snapshot submitted to the hub on
// each heartbeat tick. Built fresh every tick, never persisted.
type HeartbeatBody struct {
	Provider Provider      `json:"provider"`
	Agent    AgentProfile  `json:"agent"`
	Host     hostinfo.Info `json:"host"`
	Metrics  Metrics       `json:"metrics"`
}

// Heartbeat assembles heartbeat bodies from the resolver, the agent
// profile, host metadata, and the CLI's status output.
type Heartbeat struct {
	resolver  *Resolver
	profile   AgentProfile
	probeHost func() hostinfo.Info
}

// NewHeartbeat creates a Heartbeat. The profile carries the statically
// configured identity; a resolved identity overrides it per tick.
func NewHeartbeat(resolver *Resolver, profile AgentProfile) *Heartbeat {
	return &Heartbeat{
		resolver:  resolver,
		profile:   profile,
		probeHost: hostinfo.Probe,
	}
}

// Build produces one heartbeat body. Resolution failures degrade into
// partially filled sections; Build itself never fails.
func (h *Heartbeat) Build(ctx context.Context) HeartbeatBody {
	provider := h.resolver.Resolve(ctx)

	body := HeartbeatBody{
		Provider: provider,
		Agent:    h.profile,
		Host:     h.probeHost(),
		Metrics:  h.statusMetrics(ctx, provider),
	}

	// A resolved identity is written into both the profile section
	// and the flat metric section, so consumers reading either see
	// the same name.
	identity := h.resolver.ResolveIdentity(ctx)
	if identity.Name != "" {
		body.Agent.Name = identity.Name
		body.Metrics.AgentName = identity.Name
	} else if body.Agent.Name != "" {
		body.Metrics.AgentName = body.Agent.Name
	}
	if identity.Emoji != "" {
		body.Agent.Emoji = identity.Emoji
		body.Metrics.AgentEmoji = identity.Emoji
	} else if body.Agent.Emoji != "" {
		body.Metrics.AgentEmoji = body.Agent.Emoji
	}

	return body
}

// statusMetrics runs the CLI status command and normalizes its output.
func (h *Heartbeat) statusMetrics(ctx context.Context, provider Provider) Metrics {
	if provider.Binary == "" {
		return Metrics{}
	}

	stdout, stderr, err := h.resolver.runner.Run(ctx, provider.Binary, "status")
	if err != nil {
		h.resolver.logger.Warn("status probe failed", "error", err)
		return Metrics{}
	}

	output := string(stdout)
	if len(output) == 0 {
		output = string(stderr)
	}
	return ParseStatus(output)
}
