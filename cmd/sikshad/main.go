// Command sikshad runs the siksha HTTP daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"siksha/internal/config"
	"siksha/internal/daemonrun"
)

type runFunc func(ctx context.Context, cfg *config.Config, opts daemonrun.Options) error

func main() {
	cmd := newRootCommand(daemonrun.Run)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand(run runFunc) *cobra.Command {
	var configPath, bind, logLevel string
	cmd := &cobra.Command{
		Use:           "sikshad",
		Short:         "Run the siksha lesson daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, bind)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}

// loadConfig loads configuration and applies the bind override.
func loadConfig(path, bind string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if bind != "" {
		cfg.Paths.APIBind = bind
	}
	return cfg, nil
}
