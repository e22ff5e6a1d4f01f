package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"siksha/internal/api"
	"siksha/internal/daemonrun"
	"siksha/internal/progress"
	"siksha/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags lessonFlags
	var regenerate bool
	var logLevel string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run [topic]",
		Short: "Generate one lesson in this process without a daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := daemonrun.NewLogger(cfg, daemonrun.Options{LogLevel: logLevel})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt, err := daemonrun.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			lesson := workflow.Request{Topic: req.Topic, Audience: req.Audience, Interests: req.Interests}
			out := cmd.OutOrStdout()
			if regenerate {
				removed, err := rt.Orchestrator.Reset(lesson)
				if err != nil {
					return err
				}
				if len(removed) > 0 {
					fmt.Fprintf(out, "Removed: %s\n", strings.Join(removed, ", "))
				}
			}

			outcome, err := runWithProgress(runCtx, rt, lesson, interval, out)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return writeJSON(cmd, outcome)
			}
			fmt.Fprintf(out, "Video: %s\n", rt.Orchestrator.Layout(outcome.Key).FinalPath())
			fmt.Fprintf(out, "URL:   %s\n", outcome.VideoURL)
			fmt.Fprintf(out, "Took:  %s\n", outcome.Duration.Round(time.Second))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Delete existing outputs before generating")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for the in-process pipeline")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "How often progress is printed")
	return cmd
}

// runWithProgress runs the orchestrator and echoes progress records from the
// store until the run returns.
func runWithProgress(ctx context.Context, rt *daemonrun.Runtime, req workflow.Request, interval time.Duration, out io.Writer) (workflow.Outcome, error) {
	normalized, err := req.Normalize()
	if err != nil {
		return workflow.Outcome{}, err
	}
	key := normalized.Folder()

	type result struct {
		outcome workflow.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := rt.Orchestrator.Run(ctx, normalized)
		done <- result{outcome: outcome, err: err}
	}()

	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	echo := func() {
		status, err := progress.Lookup(context.WithoutCancel(ctx), rt.Store, key)
		if err != nil {
			return
		}
		if line := progressLine(api.FromProgress(status)); line != last {
			fmt.Fprintln(out, line)
			last = line
		}
	}
	for {
		select {
		case res := <-done:
			echo()
			return res.outcome, res.err
		case <-ticker.C:
			echo()
		}
	}
}
