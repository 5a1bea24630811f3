// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/openclaw-foundation/clawbridge/bridge"
	"github.com/openclaw-foundation/clawbridge/hub"
	"github.com/openclaw-foundation/clawbridge/lib/clawcli"
	"github.com/openclaw-foundation/clawbridge/lib/config"
	"github.com/openclaw-foundation/clawbridge/lib/journal"
	"github.com/openclaw-foundation/clawbridge/lib/transcript"
	"github.com/openclaw-foundation/clawbridge/lib/version"
)

// checkpointInterval is how often cursors and the dedup map are flushed
// to disk between shutdowns.
const checkpointInterval = 30 * time.Second

// reconnectDelay is the pause before reopening the push stream after it
// drops. The poll loop covers the gap, so aggressive retry buys nothing.
const reconnectDelay = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command-line flags.
type options struct {
	configPath  string
	sessionID   int64
	verbose     bool
	showVersion bool
	help        bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("clawbridge", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to clawbridge.yaml (default: $CLAWBRIDGE_CONFIG)")
	flagSet.Int64Var(&opts.sessionID, "session", 0, "hub session id (overrides hub.session_id from the config file)")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")
	return flagSet
}

func run() error {
	var opts options
	flagSet := newFlagSet(&opts)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if opts.help {
		printHelp(flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Printf("clawbridge %s\n", version.Info())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	logger := newLogger(opts.verbose)
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if opts.sessionID != 0 {
		cfg.Hub.SessionID = opts.sessionID
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubClient, err := hub.NewClient(hub.ClientConfig{
		BaseURL: cfg.Hub.BaseURL,
		Token:   cfg.Hub.Token,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	resolver := clawcli.NewResolver(clawcli.ResolverConfig{
		Binary:         cfg.Agent.Binary,
		RuntimeCommand: cfg.Agent.RuntimeCommand,
		Model:          cfg.Agent.Model,
		AgentKey:       cfg.Agent.Key,
		IdentityFile:   cfg.Agent.IdentityFile,
		Fallback:       clawcli.Identity{Name: cfg.Agent.Name, Emoji: cfg.Agent.Emoji},
		Logger:         logger,
	})

	provider := resolver.Resolve(ctx)
	identity := resolver.ResolveIdentity(ctx)
	profile := clawcli.AgentProfile{
		ID:    cfg.Agent.Key,
		Name:  identity.Name,
		Type:  cfg.Agent.Type,
		Emoji: identity.Emoji,
	}
	logger.Info("agent resolved",
		"provider", provider.Name,
		"version", provider.Version,
		"mode", provider.Mode,
		"agent", profile.Name,
	)

	var transcripts *transcript.Store
	if cfg.Agent.SessionIndex != "" {
		transcripts = transcript.NewStore(cfg.Agent.SessionIndex)
	}

	chat := clawcli.NewChat(clawcli.ChatConfig{
		Binary:       provider.Binary,
		AgentKey:     cfg.Agent.Key,
		ProviderName: provider.Name,
		Transcripts:  transcripts,
		WaitTimeout:  cfg.Bridge.RunTimeout,
		Logger:       logger,
	})

	var signalJournal *journal.Journal
	if cfg.Journal.Dir != "" {
		signalJournal, err = journal.Open(cfg.Journal.Dir, cfg.Journal.MaxChunkBytes, logger)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer signalJournal.Close()
	}

	runtime, err := bridge.NewRuntime(bridge.Config{
		Hub:             hubClient,
		Chat:            chat,
		HandleChat:      cfg.ChatEnabled(),
		HandleSnapshots: cfg.SnapshotsEnabled(),
		PollLimit:       cfg.Hub.PollLimit,
		PollInterval:    cfg.Hub.PollInterval,
		DedupWindow:     cfg.Bridge.DedupWindow,
		Profile:         profile,
		Journal:         signalJournal,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	state := bridge.NewSessionState(cfg.Hub.SessionID)
	if cfg.Bridge.CheckpointPath != "" {
		checkpoint, err := bridge.LoadCheckpoint(cfg.Bridge.CheckpointPath)
		if err != nil {
			return err
		}
		if entry, ok := checkpoint.Sessions[state.SessionID]; ok {
			state.Restore(entry)
			logger.Info("checkpoint restored",
				"session_id", state.SessionID,
				"last_signal_id", state.LastSignalID,
			)
		}
		go saveCheckpoints(ctx, cfg.Bridge.CheckpointPath, state, cfg.Bridge.DedupWindow, logger)
	}

	heartbeat := &bridge.HeartbeatLoop{
		Hub:      hubClient,
		Builder:  clawcli.NewHeartbeat(resolver, profile),
		Interval: cfg.Bridge.HeartbeatInterval,
		Logger:   logger,
	}
	go heartbeat.Run(ctx)

	logger.Info("clawbridge running",
		"hub", cfg.Hub.BaseURL,
		"session_id", cfg.Hub.SessionID,
		"poll_interval", cfg.Hub.PollInterval,
		"chat_enabled", cfg.ChatEnabled(),
		"snapshots_enabled", cfg.SnapshotsEnabled(),
	)

	serveSession(ctx, runtime, state, hubClient, logger)

	// Save before Close: closing releases the dedup map.
	if cfg.Bridge.CheckpointPath != "" {
		if err := bridge.SaveCheckpoint(cfg.Bridge.CheckpointPath,
			[]*bridge.SessionState{state}, time.Now(), cfg.Bridge.DedupWindow); err != nil {
			logger.Error("final checkpoint save failed", "error", err)
		}
	}
	state.Close("shutdown")
	return nil
}

// serveSession runs the session event loop, reopening the push stream
// whenever it drops, until the context ends. Missed signals during the
// gap arrive via the initial poll of the next attempt.
func serveSession(ctx context.Context, runtime *bridge.Runtime, state *bridge.SessionState, hubClient *hub.Client, logger *slog.Logger) {
	for ctx.Err() == nil {
		err := runtime.Bridge(ctx, state, hubClient)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("session stream failed, reconnecting",
				"session_id", state.SessionID, "error", err)
		} else {
			logger.Info("session stream closed, reconnecting",
				"session_id", state.SessionID)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// saveCheckpoints periodically persists cursors and the dedup map so a
// crash loses at most one interval of progress. The final save on clean
// shutdown happens in run.
func saveCheckpoints(ctx context.Context, path string, state *bridge.SessionState, window time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(checkpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := bridge.SaveCheckpoint(path, []*bridge.SessionState{state}, time.Now(), window); err != nil {
				logger.Warn("checkpoint save failed", "error", err)
			}
		}
	}
}

// newLogger builds the process logger. A terminal gets human-readable
// text; piped or redirected stderr gets JSON records.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `clawbridge - bridge a local OpenClaw agent into a hub session

Subscribes to the session's signal stream, backfills missed signals by
polling, runs the agent CLI for chat and notification traffic, and
submits periodic capability heartbeats.

Usage:
    clawbridge --config clawbridge.yaml [flags]

Flags:
%s
Configuration is read from --config, or from the file named by the
CLAWBRIDGE_CONFIG environment variable when the flag is absent.
`, flagSet.FlagUsages())
}
