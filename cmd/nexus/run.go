package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nexus-run/nexus/internal/notify"
	"github.com/nexus-run/nexus/internal/scheduler"
)

// newRequestID identifies one `run` invocation across its telemetry
// events, the way dagu tags a run with a request ID.
func newRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return "unknown"
	}
	return id.String()
}

func runCmd() *cobra.Command {
	var targets []string
	var continueOnError bool
	var parallelLimit int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "execute the named tasks and their dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			// spec §4.8 step 6c: the phase-abort decision is the CLI flag
			// OR'd with config.defaults.continue_on_error, and the same
			// union drives host-level command sequencing.
			unifiedContinueOnError := continueOnError || cfg.Defaults.ContinueOnError
			sched, closeFn := buildScheduler(cfg, debug, unifiedContinueOnError)
			defer closeFn()

			requestID := newRequestID()
			fmt.Printf("request_id=%s\n", requestID)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			listenForInterrupt(cancel)

			if len(targets) == 0 {
				targets = allTaskNames(cfg)
			}

			result, err := sched.Run(ctx, targets, scheduler.Options{
				ContinueOnError: unifiedContinueOnError,
				ParallelLimit:   parallelLimit,
			})
			if err != nil {
				return err
			}

			if sender := buildNotifier(); sender != nil && notify.ShouldNotify(cfg.NotifyOn, result) {
				if notifyErr := sender.Notify(result); notifyErr != nil {
					fmt.Fprintf(os.Stderr, "notify: %v\n", notifyErr)
				}
			}

			fmt.Println(renderPipelineResult(result))
			if result.Status != "ok" {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "target task names (default: all tasks)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep running later phases after a task fails")
	cmd.Flags().IntVar(&parallelLimit, "parallel-limit", 0, "max concurrent task runners per phase (0: use config default)")
	return cmd
}

func listenForInterrupt(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
}
