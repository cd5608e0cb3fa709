// File: cmd/shell.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/agent"
	"github.com/dkovalq/pagepilot-cli/internal/browser"
	"github.com/dkovalq/pagepilot-cli/internal/browser/jsexec"
	"github.com/dkovalq/pagepilot-cli/internal/config"
	"github.com/dkovalq/pagepilot-cli/internal/llmclient"
	"github.com/dkovalq/pagepilot-cli/internal/observability"
	"github.com/dkovalq/pagepilot-cli/internal/shell"
)

// newShellCmd creates the explicit `shell` subcommand; the bare root command
// runs the same loop.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive browser shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), cfg)
		},
	}
}

// runShell builds the component graph and hands control to the session loop.
// Construction failures never enter the loop: they are reported with an
// initialization hint and tear down whatever was already started.
func runShell(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	session, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		return reportInitError(err)
	}

	llm, err := llmclient.New(cfg.Agent, logger)
	if err != nil {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn("Session teardown failed", zap.Error(closeErr))
		}
		return reportInitError(err)
	}

	runtime := jsexec.NewRuntime(logger, session)
	defer runtime.Close()

	var history *shell.History
	if cfg.History.Enabled {
		history, err = shell.NewHistory(cfg.History.DBPath, logger)
		if err != nil {
			// History is best effort; the shell runs without it.
			logger.Warn("History database unavailable", zap.Error(err))
			history = nil
		}
	}

	sh := shell.New(shell.Params{
		Session: session,
		Eval:    runtime,
		Runner:  agent.NewExecutor(cfg.Agent, llm, session, logger),
		History: history,
		Logger:  logger,
	})
	return sh.Run(ctx)
}

// reportInitError prints an initialization failure with its remediation hint.
func reportInitError(err error) error {
	for _, hint := range shell.InitHint(err) {
		fmt.Fprintln(os.Stderr, hint)
	}
	return err
}
