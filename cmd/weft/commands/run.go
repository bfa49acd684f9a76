package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/weft-ai/weft/internal/event"
)

var (
	runModel     string
	runAgent     string
	runSessionID string
	runDir       string
	runVerbose   bool
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send one turn and stream the answer",
	Long: `Send a user turn and stream the model's answer to stdout,
executing any tool calls the model issues along the way.

Examples:
  weft run "What time is it in Tokyo?"
  weft run --model anthropic/claude-sonnet-4 "Summarize https://example.com"
  weft run --session 01JF8... "And in Sydney?"`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format)")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "Agent profile to use")
	runCmd.Flags().StringVarP(&runSessionID, "session", "s", "", "Session ID to continue")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Show reasoning and tool activity on stderr")
}

func runOnce(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errors.New("message is required")
	}

	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}
	if runModel != "" {
		os.Setenv("WEFT_MODEL", runModel)
	}

	app, err := buildApp(workDir)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	sessionID := runSessionID
	if sessionID == "" {
		title := text
		if len(title) > 80 {
			title = title[:80]
		}
		sess, err := app.sessions.Create(ctx, title, runAgent)
		if err != nil {
			return err
		}
		sessionID = sess.ID
		fmt.Fprintf(os.Stderr, "session %s\n", sessionID)
	}

	terminal := make(chan event.Event, 1)
	requestID := ulid.Make().String()

	forRun := func(got string) bool { return got == requestID }

	unsub := app.bus.SubscribeAll(func(e event.Event) {
		switch data := e.Data.(type) {
		case event.ContentDeltaData:
			if e.Type == event.ContentDelta && forRun(data.RequestID) {
				fmt.Print(data.Delta)
			}
			if e.Type == event.ReasoningDelta && runVerbose && forRun(data.RequestID) {
				fmt.Fprint(os.Stderr, data.Delta)
			}
		case event.ToolCallUpdatedData:
			if data.Status == "ready" && runVerbose && forRun(data.RequestID) {
				fmt.Fprintf(os.Stderr, "\n[tool] %s %s\n", data.ToolCall.Name, data.ToolCall.Arguments)
			}
		case event.RunCompletedData:
			if forRun(data.RequestID) {
				terminal <- e
			}
		case event.RunFailedData:
			if forRun(data.RequestID) {
				terminal <- e
			}
		case event.RunCancelledData:
			if forRun(data.RequestID) {
				terminal <- e
			}
		}
	})
	defer unsub()

	if err := app.sessions.Start(ctx, sessionID, requestID, text); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	for {
		select {
		case <-interrupt:
			app.sessions.Cancel(sessionID, requestID)
		case e := <-terminal:
			fmt.Println()
			switch data := e.Data.(type) {
			case event.RunFailedData:
				return fmt.Errorf("run failed: %s", data.Error)
			case event.RunCancelledData:
				fmt.Fprintln(os.Stderr, "cancelled")
			}
			return nil
		}
	}
}
