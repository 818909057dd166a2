package cli

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/intent-arbiter/internal/app"
	"github.com/dwizi/intent-arbiter/internal/config"
	"github.com/dwizi/intent-arbiter/internal/session"
)

type turner interface {
	Handle(ctx context.Context, req session.Request) (session.Reply, error)
}

func newREPLCommand(logger *slog.Logger) *cobra.Command {
	var (
		sessionID  string
		scope      string
		timeoutSec int
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Run turns from stdin against an in-process session",
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := app.New(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer runtime.Close()
			cmd.Println("Type /exit to quit.")
			return runREPL(cmd, runtime.Sessions(), sessionID, scope, timeoutSec)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (new session when empty)")
	cmd.Flags().StringVar(&scope, "scope", "", "explicit scope for every turn: chat, widget, dashboard or workspace")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "per-turn timeout in seconds")
	return cmd
}

func runREPL(cmd *cobra.Command, sessions turner, sessionID, scope string, timeoutSec int) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		cmd.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
		reply, err := sessions.Handle(ctx, session.Request{SessionID: sessionID, Input: text, Scope: scope})
		cancel()
		if err != nil {
			cmd.PrintErrf("turn failed: %v\n", err)
			continue
		}
		if sessionID == "" {
			sessionID = reply.SessionID
		}
		printReply(cmd, reply)
	}
	return scanner.Err()
}

func printReply(cmd *cobra.Command, reply session.Reply) {
	message := strings.TrimSpace(reply.Message)
	if message == "" {
		message = "(no reply)"
	}
	cmd.Printf("arbiter> %s\n", message)
	if reply.Clarifier != nil {
		for index, option := range reply.Clarifier.Options {
			cmd.Printf("         %d. %s\n", index+1, option.Label)
		}
	}
	if reply.FocusLatch != "" {
		cmd.Printf("         [latched: %s]\n", reply.FocusLatch)
	}
}

func boundedTimeout(seconds int) time.Duration {
	if seconds < 1 {
		seconds = 30
	}
	if seconds > 600 {
		seconds = 600
	}
	return time.Duration(seconds) * time.Second
}
