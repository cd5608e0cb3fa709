// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/config"
	"github.com/dkovalq/pagepilot-cli/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command. Called without a subcommand it starts
// the interactive shell.
var rootCmd = &cobra.Command{
	Use:     "pagepilot",
	Short:   "Pagepilot drives a browser from an interactive shell, by raw commands or natural language.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Runs before every command: resolve config, then stand up logging.
		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			// Fallback logger so the failure itself is reported somewhere.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagepilot"})
			return err
		}
		cfg = loaded
		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting pagepilot", zap.String("version", Version))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context(), cfg)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. The context it installs is cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		observability.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.pagepilot/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newRunCmd())
}
