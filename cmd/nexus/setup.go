package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nexus-run/nexus/internal/config"
	"github.com/nexus-run/nexus/internal/core"
	sshexec "github.com/nexus-run/nexus/internal/executor/ssh"
	"github.com/nexus-run/nexus/internal/facts"
	"github.com/nexus-run/nexus/internal/notify"
	"github.com/nexus-run/nexus/internal/predicate"
	"github.com/nexus-run/nexus/internal/runner"
	"github.com/nexus-run/nexus/internal/scheduler"
	"github.com/nexus-run/nexus/internal/secrets"
	"github.com/nexus-run/nexus/internal/telemetrylog"
)

// loadConfig resolves the --config flag (falling back to viper's
// NEXUS_CONFIG env override) and parses the pipeline YAML file.
func loadConfig(cmd *cobra.Command) (core.Config, error) {
	viper.SetEnvPrefix("nexus")
	viper.AutomaticEnv()
	if err := viper.BindPFlag("config", cmd.Flags().Lookup("config")); err != nil {
		return core.Config{}, fmt.Errorf("bind config flag: %w", err)
	}

	path := viper.GetString("config")
	if path == "" {
		return core.Config{}, fmt.Errorf("--config is required")
	}
	return config.Load(path, predicate.Parse)
}

// buildScheduler wires a Scheduler backed by the real local/SSH
// transports and a gopsutil facts provider. continueOnError is the
// already-unified (CLI flag OR config.Defaults.ContinueOnError) value;
// it drives host-level command sequencing inside the TaskRunner, the
// same union the caller also hands to scheduler.Options for phase-level
// sequencing (spec §4.8 step 6c).
func buildScheduler(cfg core.Config, debug bool, continueOnError bool) (*scheduler.Scheduler, func()) {
	sink := telemetrylogSink(debug)

	var resolvePass sshexec.PasswordResolver
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		if addr := os.Getenv("VAULT_ADDR"); addr != "" {
			if client, err := secrets.NewVaultClient(addr, token); err == nil {
				resolvePass = client.ResolveHostPassword
			}
		}
	}

	registry := sshexec.NewRegistry(func(host core.Host) *sshexec.Pool {
		policy := sshexec.HostKeyAcceptUnknown
		if host.StrictHostKey {
			policy = sshexec.HostKeyStrict
		}
		connectTimeout := time.Duration(cfg.Defaults.ConnectTimeoutMS) * time.Millisecond
		return sshexec.NewPool(host, cfg.Defaults.MaxConnections, connectTimeout, policy, resolvePass, nil, sink)
	})

	router := runner.NewRouter(registry)
	provider := facts.NewGopsutilProvider(runner.NewSSHTransport(registry))

	processFacts, _ := provider.Facts(context.Background(), core.LocalHost)

	// hostConcurrency is 0 (unbounded): spec §5 caps fan-out only via each
	// host's own SSH pool, not an extra per-task limit.
	taskRunner := runner.NewTaskRunner(cfg, router, provider, processFacts, sink, continueOnError, 0)
	sched := scheduler.New(cfg, taskRunner)

	return sched, func() { registry.CloseAll() }
}

// buildNotifier assembles a notify.Sender from whichever of
// Slack/Discord have credentials in the environment, fanned out via
// notify.Multi. Returns nil if neither is configured, in which case the
// run command skips the notify callback entirely.
func buildNotifier() notify.Sender {
	var senders notify.Multi
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		if channel := os.Getenv("SLACK_CHANNEL"); channel != "" {
			senders = append(senders, notify.NewSlackSender(token, channel))
		}
	}
	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		if channelID := os.Getenv("DISCORD_CHANNEL_ID"); channelID != "" {
			if sender, err := notify.NewDiscordSender(token, channelID); err == nil {
				senders = append(senders, sender)
			}
		}
	}
	if len(senders) == 0 {
		return nil
	}
	return senders
}

func telemetrylogSink(debug bool) *telemetrylog.Sink {
	var opts []telemetrylog.Option
	if debug {
		opts = append(opts, telemetrylog.WithDebug())
	}
	return telemetrylog.New(opts...)
}
