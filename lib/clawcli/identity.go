// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package clawcli

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/tidwall/jsonc"
)

// Identity is an agent's display identity.
type Identity struct {
	Name  string `json:"name,omitempty"`
	Emoji string `json:"emoji,omitempty"`
}

// agentEntry is one agent record in a listing payload.
type agentEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// ResolveIdentity resolves the agent's display identity through the
// cascade: the CLI's agents-list subcommand, its --json variant, a
// gateway agents.list RPC, a local identity configuration file, and
// finally the static fallback. Each stage degrades silently; the
// method never fails, it only gets less specific.
func (r *Resolver) ResolveIdentity(ctx context.Context) Identity {
	binary, _ := r.binaryPath()

	if binary != "" {
		if identity, ok := r.identityFromCommand(ctx, binary, "agents", "list"); ok {
			return identity
		}
		if identity, ok := r.identityFromCommand(ctx, binary, "agents", "list", "--json"); ok {
			return identity
		}
	}

	if r.config.Gateway != nil {
		if payload, err := r.config.Gateway(ctx, "agents.list"); err == nil {
			if identity, ok := identityFromListing(payload, r.config.AgentKey); ok {
				return identity
			}
		} else {
			r.logger.Debug("gateway agents.list failed", "error", err)
		}
	}

	if identity, ok := r.identityFromFile(); ok {
		return identity
	}

	return r.config.Fallback
}

// identityFromCommand runs one agents-list invocation and extracts an
// identity from whichever stream carries JSON.
func (r *Resolver) identityFromCommand(ctx context.Context, binary string, args ...string) (Identity, bool) {
	stdout, stderr, err := r.runner.Run(ctx, binary, args...)
	if err != nil {
		return Identity{}, false
	}
	raw, ok := firstJSON(stdout, stderr)
	if !ok {
		return Identity{}, false
	}
	return identityFromListing(raw, r.config.AgentKey)
}

// identityFromListing extracts an identity from an agents-list
// payload. The payload is either an array of agent records or an
// object keyed by agent id whose values are agent records. The entry
// matching agentKey wins; otherwise the first named entry (by sorted
// key for the object form, so the choice is deterministic).
func identityFromListing(payload json.RawMessage, agentKey string) (Identity, bool) {
	var entries []agentEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		var keyed map[string]agentEntry
		if err := json.Unmarshal(payload, &keyed); err != nil {
			// Some variants wrap the listing in {"agents": ...}.
			var wrapped struct {
				Agents json.RawMessage `json:"agents"`
			}
			if err := json.Unmarshal(payload, &wrapped); err != nil || len(wrapped.Agents) == 0 {
				return Identity{}, false
			}
			return identityFromListing(wrapped.Agents, agentKey)
		}

		keys := make([]string, 0, len(keyed))
		for key := range keyed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			entry := keyed[key]
			if entry.ID == "" {
				entry.ID = key
			}
			entries = append(entries, entry)
		}
	}

	var first *agentEntry
	for i := range entries {
		entry := &entries[i]
		if entry.Name == "" && entry.Emoji == "" {
			continue
		}
		if agentKey != "" && entry.ID == agentKey {
			return Identity{Name: entry.Name, Emoji: entry.Emoji}, true
		}
		if first == nil {
			first = entry
		}
	}
	if first == nil {
		return Identity{}, false
	}
	return Identity{Name: first.Name, Emoji: first.Emoji}, true
}

// identityFromFile reads the local identity configuration file. The
// file format is JSON with comments and trailing commas tolerated,
// because it is hand-edited.
func (r *Resolver) identityFromFile() (Identity, bool) {
	path := r.config.IdentityFile
	if path == "" {
		return Identity{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, false
	}
	normalized := jsonc.ToJSON(data)

	// Preferred shape: an agents listing like the CLI's. Fallback
	// shape: a bare {name, emoji} object.
	if identity, ok := identityFromListing(normalized, r.config.AgentKey); ok {
		return identity, true
	}

	var bare Identity
	if err := json.Unmarshal(normalized, &bare); err != nil {
		return Identity{}, false
	}
	if bare.Name == "" && bare.Emoji == "" {
		return Identity{}, false
	}
	return bare, true
}
