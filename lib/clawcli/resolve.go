// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package clawcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// DefaultBinaryName is the executable name searched for on PATH when
// no explicit binary is configured.
const DefaultBinaryName = "openclaw"

// Provider kinds.
const (
	KindOpenClaw = "openclaw"
	KindExternal = "external"
)

// Resolution modes, recorded for diagnostics.
const (
	ModeConfigured = "configured"
	ModePath       = "path"
	ModeRuntime    = "runtime"
	ModeUnresolved = "unresolved"
)

// Provider is the resolved capability descriptor for the locally
// available agent executable.
type Provider struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	Build   string   `json:"build,omitempty"`
	Mode    string   `json:"mode"`
	Models  []string `json:"models,omitempty"`

	// Binary is the resolved executable path; empty when unresolved.
	Binary string `json:"-"`
}

// ResolverConfig configures a Resolver. Only the zero-valuable fields
// a deployment actually sets need to be filled; everything else has a
// working default.
type ResolverConfig struct {
	// Binary is an explicitly configured executable path, tried first.
	Binary string
	// RuntimeCommand is a configured runtime invocation. Its first
	// element is accepted as an auto-detected binary when its basename
	// matches DefaultBinaryName.
	RuntimeCommand []string
	// Model, when set, overrides anything the executable reports.
	Model string
	// AgentKey selects this agent's entry in multi-agent listings.
	AgentKey string
	// IdentityFile is a local identity configuration file, consulted
	// late in the identity cascade.
	IdentityFile string
	// Fallback is the static identity used when every other identity
	// source comes up empty.
	Fallback Identity

	// Runner executes CLI invocations. Nil means ExecRunner.
	Runner Runner
	// LookPath searches PATH. Nil means exec.LookPath.
	LookPath func(string) (string, error)
	// Gateway performs a gateway RPC by method name. Nil disables the
	// gateway stage of the identity cascade.
	Gateway func(ctx context.Context, method string) (json.RawMessage, error)
	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Resolver discovers the agent executable and its capabilities.
type Resolver struct {
	config   ResolverConfig
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) *Resolver {
	runner := config.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	lookPath := config.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{config: config, runner: runner, lookPath: lookPath, logger: logger}
}

// Resolve discovers the agent executable, probes its version, and
// resolves its model inventory. It never returns an error: an absent
// executable yields an unresolved external Provider, which is still a
// valid heartbeat answer.
func (r *Resolver) Resolve(ctx context.Context) Provider {
	binary, mode := r.binaryPath()
	if binary == "" {
		return Provider{Kind: KindExternal, Name: DefaultBinaryName, Mode: ModeUnresolved}
	}

	provider := Provider{
		Kind:   KindOpenClaw,
		Name:   DefaultBinaryName,
		Mode:   mode,
		Binary: binary,
	}
	provider.Version, provider.Build = r.probeVersion(ctx, binary)
	if provider.Build == "" {
		provider.Build = binaryFingerprint(binary)
	}
	provider.Models = r.resolveModels(ctx, binary)
	return provider
}

// binaryPath resolves the executable path: configured path, then PATH
// discovery, then a configured runtime command whose binary matches
// the expected tool name.
func (r *Resolver) binaryPath() (string, string) {
	if r.config.Binary != "" {
		if isExecutableFile(r.config.Binary) {
			return r.config.Binary, ModeConfigured
		}
		r.logger.Warn("configured agent binary is not usable", "binary", r.config.Binary)
	}

	if found, err := r.lookPath(DefaultBinaryName); err == nil {
		return found, ModePath
	}

	if len(r.config.RuntimeCommand) > 0 {
		candidate := r.config.RuntimeCommand[0]
		if binaryBasename(candidate) == DefaultBinaryName {
			return candidate, ModeRuntime
		}
	}

	return "", ModeUnresolved
}

// probeVersion runs the --version probe and parses the first output
// line, e.g. "openclaw 1.4.2 (build 83f1c0d)".
func (r *Resolver) probeVersion(ctx context.Context, binary string) (version, build string) {
	stdout, stderr, err := r.runner.Run(ctx, binary, "--version")
	if err != nil {
		r.logger.Warn("version probe failed", "binary", binary, "error", err)
		return "", ""
	}

	line := firstLine(stdout)
	if line == "" {
		line = firstLine(stderr)
	}
	return parseVersionLine(line)
}

// parseVersionLine extracts the version token and an optional
// "(build <id>)" suffix from a version line.
func parseVersionLine(line string) (version, build string) {
	if open := strings.Index(line, "(build "); open >= 0 {
		rest := line[open+len("(build "):]
		if close := strings.Index(rest, ")"); close >= 0 {
			build = strings.TrimSpace(rest[:close])
		}
		line = strings.TrimSpace(line[:open])
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", build
	}
	// "openclaw 1.4.2" or a bare "1.4.2".
	version = fields[len(fields)-1]
	version = strings.TrimPrefix(version, "v")
	return version, build
}

// binaryFingerprint hashes the executable's contents so heartbeats can
// distinguish builds even when --version carries no build id.
func binaryFingerprint(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return ""
	}
	return fmt.Sprintf("blake3:%x", hasher.Sum(nil)[:8])
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// binaryBasename strips the directory and any trailing version suffix
// separated by "@" (runtime specs like "openclaw@1.4").
func binaryBasename(command string) string {
	base := filepath.Base(command)
	if at := strings.Index(base, "@"); at >= 0 {
		base = base[:at]
	}
	return base
}

func firstLine(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ""
	}
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[:newline]
	}
	return strings.TrimSpace(text)
}
