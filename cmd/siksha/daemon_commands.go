package main

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"siksha/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the siksha daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr := ctx.apiAddress(); addr != cfg.Paths.APIBind {
				cfg.Paths.APIBind = addr
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Force console log output")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running siksha daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pid, err := daemonrun.ReadPID(cfg)
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
				if errors.Is(err, syscall.ESRCH) {
					fmt.Fprintln(out, "Daemon is not running (stale pid file)")
					return nil
				}
				return fmt.Errorf("signal daemon (pid %d): %w", pid, err)
			}
			fmt.Fprintf(out, "Stopping daemon (pid %d)...\n", pid)

			deadline := time.Now().Add(timeout)
			for time.Now().Before(deadline) {
				if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
					fmt.Fprintln(out, "Daemon stopped")
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			return fmt.Errorf("daemon (pid %d) still running after %s", pid, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 40*time.Second, "How long to wait for in-flight runs to stop")
	return cmd
}
