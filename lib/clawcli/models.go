// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package clawcli

import (
	"context"
	"encoding/json"
	"strings"
)

// modelStatus is the model section of the CLI's structured status
// output.
type modelStatus struct {
	Configured      []string `json:"configured"`
	ResolvedDefault string   `json:"resolvedDefault"`
	DefaultModel    string   `json:"defaultModel"`
	Allowed         []string `json:"allowed"`
}

// resolveModels determines the ordered model inventory. An explicitly
// configured model always wins; otherwise the CLI's status output is
// consulted through the fallback chain. An empty inventory is a valid
// answer.
func (r *Resolver) resolveModels(ctx context.Context, binary string) []string {
	if r.config.Model != "" {
		return []string{r.config.Model}
	}

	stdout, stderr, err := r.runner.Run(ctx, binary, "models", "status", "--json")
	if err != nil {
		r.logger.Warn("model status probe failed", "error", err)
		return nil
	}

	raw, ok := firstJSON(stdout, stderr)
	if !ok {
		return nil
	}

	var status struct {
		Models modelStatus `json:"models"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil
	}
	return modelChain(status.Models)
}

// modelChain applies the inventory preference order: configured list,
// then resolvedDefault, then defaultModel, then the allowed list.
func modelChain(status modelStatus) []string {
	if len(status.Configured) > 0 {
		return status.Configured
	}
	if status.ResolvedDefault != "" {
		return []string{status.ResolvedDefault}
	}
	if status.DefaultModel != "" {
		return []string{status.DefaultModel}
	}
	return status.Allowed
}

// firstJSON extracts the first JSON document found in stdout, falling
// back to stderr. Some CLI versions print human-readable text on one
// stream and JSON on the other; trying both streams in a fixed order
// keeps call sites free of per-version special cases.
func firstJSON(stdout, stderr []byte) (json.RawMessage, bool) {
	if raw, ok := scanJSON(stdout); ok {
		return raw, true
	}
	return scanJSON(stderr)
}

// scanJSON returns the first parseable JSON value in the output: the
// whole trimmed output if it parses, otherwise the first line that
// looks like a JSON object or array and parses on its own.
func scanJSON(output []byte) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return nil, false
	}

	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), true
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line[0] != '{' && line[0] != '[' {
			continue
		}
		if json.Valid([]byte(line)) {
			return json.RawMessage(line), true
		}
	}
	return nil, false
}
