package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/intent-arbiter/internal/app"
	"github.com/dwizi/intent-arbiter/internal/config"
	"github.com/dwizi/intent-arbiter/internal/tui"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "intent-arbiter",
		Short: "Intent Arbiter resolves follow-up chat input against the last clarifier",
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newREPLCommand(logger))
	root.AddCommand(newTUICommand(logger))
	root.AddCommand(newClassifyCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := app.New(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newTUICommand(logger *slog.Logger) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Chat with the arbiter in a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := app.New(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer runtime.Close()
			return tui.Run(runtime.Sessions(), sessionID, logger)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (new session when empty)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
