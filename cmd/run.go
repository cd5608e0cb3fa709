// File: cmd/run.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/agent"
	"github.com/dkovalq/pagepilot-cli/internal/browser"
	"github.com/dkovalq/pagepilot-cli/internal/llmclient"
	"github.com/dkovalq/pagepilot-cli/internal/observability"
	"github.com/dkovalq/pagepilot-cli/internal/shell"
)

// newRunCmd creates the `run` command: one agent instruction, one report,
// no interactive loop.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <instruction...>",
		Short: "Execute a single natural-language instruction and exit",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			instruction := strings.Join(args, " ")

			session, err := browser.NewSession(ctx, cfg.Browser, logger)
			if err != nil {
				return reportInitError(err)
			}
			defer func() {
				if closeErr := session.Close(); closeErr != nil {
					logger.Warn("Session teardown failed", zap.Error(closeErr))
				}
			}()

			if startURL := viper.GetString("url"); startURL != "" {
				if err := session.Navigate(ctx, startURL); err != nil {
					return err
				}
			}

			llm, err := llmclient.New(cfg.Agent, logger)
			if err != nil {
				return reportInitError(err)
			}

			result, err := agent.NewExecutor(cfg.Agent, llm, session, logger).Run(ctx, instruction)
			if err != nil {
				for _, hint := range shell.Hints(err) {
					fmt.Fprintln(os.Stderr, hint)
				}
				return err
			}
			for _, line := range shell.FormatRunResult(result) {
				fmt.Println(line)
			}
			return nil
		},
	}

	runCmd.Flags().String("url", "", "page to open before running the instruction")
	return runCmd
}
