// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for clawbridge.
//
// Configuration is loaded from a single YAML file specified by:
//   - CLAWBRIDGE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// Field precedence, highest first: value set directly on the Config by
// the caller, then the corresponding environment variable, then the
// value discovered at runtime (for example a binary found on PATH),
// then the static default. The config file populates the first tier.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for clawbridge.
type Config struct {
	// Hub configures the collaboration service connection.
	Hub HubConfig `yaml:"hub"`

	// Agent configures the local agent executable and identity.
	Agent AgentConfig `yaml:"agent"`

	// Bridge configures per-session bridging behavior.
	Bridge BridgeConfig `yaml:"bridge"`

	// Journal configures the local signal journal.
	Journal JournalConfig `yaml:"journal"`
}

// HubConfig configures the collaboration service connection.
type HubConfig struct {
	// BaseURL is the root URL of the hub's REST API.
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token for hub requests. Usually supplied
	// via ${CLAWBRIDGE_HUB_TOKEN} expansion rather than written into
	// the file directly.
	Token string `yaml:"token"`

	// SessionID is the hub session this bridge instance serves.
	SessionID int64 `yaml:"session_id"`

	// PollInterval is how often the poll loop backfills signals.
	// Default: 15s
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollLimit is the maximum number of signals fetched per poll.
	// Default: 100
	PollLimit int `yaml:"poll_limit"`
}

// AgentConfig configures the local agent executable and identity.
type AgentConfig struct {
	// Binary is the explicit path to the agent executable. When empty,
	// the resolver searches PATH and then inspects RuntimeCommand.
	Binary string `yaml:"binary"`

	// RuntimeCommand is a full runtime invocation (binary plus
	// arguments). If its binary's basename matches the expected tool
	// name it is accepted as an auto-detected candidate.
	RuntimeCommand []string `yaml:"runtime_command"`

	// Model is the explicitly configured model, preferred over
	// anything the executable reports.
	Model string `yaml:"model"`

	// Name, Type, and Emoji form the agent profile. Overridable via
	// OPENCLAW_AGENT_NAME, OPENCLAW_AGENT_TYPE, OPENCLAW_AGENT_EMOJI.
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Emoji string `yaml:"emoji"`

	// Key is the agent's key in the session index
	// (agent:<key>:<provider>:<session-id>).
	Key string `yaml:"key"`

	// IdentityFile is the path to a local identity configuration file
	// consulted when the executable cannot report its own identity.
	// Overridable via OPENCLAW_CONFIG.
	IdentityFile string `yaml:"identity_file"`

	// SessionIndex is the path to the persisted session index JSON.
	SessionIndex string `yaml:"session_index"`
}

// BridgeConfig configures per-session bridging behavior.
type BridgeConfig struct {
	// HandleChat enables direct handling of chat.user signals. When
	// false they are routed to the unhandled-signal callback.
	// Default: true
	HandleChat *bool `yaml:"handle_chat"`

	// HandleSnapshots enables handling of snapshot.request signals.
	// Default: true
	HandleSnapshots *bool `yaml:"handle_snapshots"`

	// HeartbeatInterval is how often a heartbeat body is built and
	// submitted. Default: 60s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// RunTimeout bounds the wait phase of one agent run.
	// Default: 10m
	RunTimeout time.Duration `yaml:"run_timeout"`

	// CheckpointPath is where session cursors and the dedup map are
	// persisted across restarts. Empty disables checkpointing.
	CheckpointPath string `yaml:"checkpoint_path"`

	// DedupWindow is how long processed notification keys are
	// remembered before eviction. Default: 24h
	DedupWindow time.Duration `yaml:"dedup_window"`
}

// JournalConfig configures the local signal journal.
type JournalConfig struct {
	// Dir is the journal directory. Empty disables journaling.
	Dir string `yaml:"dir"`

	// MaxChunkBytes is the rotation threshold for the active chunk.
	// Default: 4 MiB
	MaxChunkBytes int64 `yaml:"max_chunk_bytes"`
}

// Default returns the default configuration. These defaults are the
// lowest precedence tier; the config file and environment variables
// layer on top.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "clawbridge")
	enabled := true

	return &Config{
		Hub: HubConfig{
			PollInterval: 15 * time.Second,
			PollLimit:    100,
		},
		Agent: AgentConfig{
			Type: "openclaw",
		},
		Bridge: BridgeConfig{
			HandleChat:        &enabled,
			HandleSnapshots:   &enabled,
			HeartbeatInterval: 60 * time.Second,
			RunTimeout:        10 * time.Minute,
			CheckpointPath:    filepath.Join(defaultRoot, "checkpoint.cbor"),
			DedupWindow:       24 * time.Hour,
		},
		Journal: JournalConfig{
			MaxChunkBytes: 4 << 20,
		},
	}
}

// Load loads configuration from the CLAWBRIDGE_CONFIG environment
// variable. If CLAWBRIDGE_CONFIG is not set, this fails; use LoadFile
// with an explicit path for the --config flag.
func Load() (*Config, error) {
	configPath := os.Getenv("CLAWBRIDGE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CLAWBRIDGE_CONFIG environment variable not set; " +
			"set it to the path of your clawbridge.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, layered over
// Default, then applies environment variable overrides and ${VAR}
// expansion.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironment()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironment applies the OPENCLAW_* identity environment
// variables. An environment variable beats the file value only when
// the variable is set and the caller did not set the field directly,
// which at this point is indistinguishable from the file having set
// it; the documented precedence therefore puts env above file for
// these identity fields specifically, matching how the agent CLI
// itself reads them.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("OPENCLAW_AGENT_NAME"); v != "" {
		c.Agent.Name = v
	}
	if v := os.Getenv("OPENCLAW_AGENT_TYPE"); v != "" {
		c.Agent.Type = v
	}
	if v := os.Getenv("OPENCLAW_AGENT_EMOJI"); v != "" {
		c.Agent.Emoji = v
	}
	if v := os.Getenv("OPENCLAW_CONFIG"); v != "" {
		c.Agent.IdentityFile = v
	}
	if v := os.Getenv("OPENCLAW_BINARY"); v != "" {
		c.Agent.Binary = v
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// string fields that commonly carry paths or secrets.
func (c *Config) expandVariables() {
	c.Hub.BaseURL = expandVars(c.Hub.BaseURL)
	c.Hub.Token = expandVars(c.Hub.Token)
	c.Agent.Binary = expandVars(c.Agent.Binary)
	c.Agent.IdentityFile = expandVars(c.Agent.IdentityFile)
	c.Agent.SessionIndex = expandVars(c.Agent.SessionIndex)
	c.Bridge.CheckpointPath = expandVars(c.Bridge.CheckpointPath)
	c.Journal.Dir = expandVars(c.Journal.Dir)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Hub.BaseURL == "" {
		errs = append(errs, fmt.Errorf("hub.base_url is required"))
	}
	if c.Hub.SessionID == 0 {
		errs = append(errs, fmt.Errorf("hub.session_id is required"))
	}
	if c.Hub.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("hub.poll_interval must be positive"))
	}
	if c.Hub.PollLimit <= 0 {
		errs = append(errs, fmt.Errorf("hub.poll_limit must be positive"))
	}
	if c.Bridge.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("bridge.heartbeat_interval must be positive"))
	}
	if c.Bridge.RunTimeout <= 0 {
		errs = append(errs, fmt.Errorf("bridge.run_timeout must be positive"))
	}
	if c.Bridge.DedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("bridge.dedup_window must be positive"))
	}
	if c.Journal.Dir != "" && c.Journal.MaxChunkBytes <= 0 {
		errs = append(errs, fmt.Errorf("journal.max_chunk_bytes must be positive when journal.dir is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ChatEnabled reports whether chat.user signals are handled directly.
func (c *Config) ChatEnabled() bool {
	return c.Bridge.HandleChat == nil || *c.Bridge.HandleChat
}

// SnapshotsEnabled reports whether snapshot.request signals are handled.
func (c *Config) SnapshotsEnabled() bool {
	return c.Bridge.HandleSnapshots == nil || *c.Bridge.HandleSnapshots
}
