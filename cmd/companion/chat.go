package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/flow"
	"github.com/BaSui01/companion/types"
)

// =============================================================================
// 💬 chat 命令
// =============================================================================

const chatHelp = `Commands:
  <text>              send a message
  /1, /2 ...          press a button of the last scripted message
  /button <id>        press a button by identifier
  /activity k=v ...   send an activity with metadata
  /reset              start a new conversation
  /quit               exit`

func newChatCmd(opts *rootOptions) *cobra.Command {
	var newConversation bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// 终端对话时日志只输出到 stderr，避免与对话内容混排
			cfg.Log.OutputPaths = []string{"stderr"}
			if cfg.Log.Level == "info" {
				cfg.Log.Level = "warn"
			}
			logger, _ := initLogger(cfg.Log)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			session := newChatSession(a.orch, cmd.OutOrStdout(), cfg.Flow.CharacterName)
			defer session.Close()

			start := a.orch.Initialize
			if newConversation {
				start = a.orch.ForceNewConversation
			}
			if err := start(ctx, flow.InitOptions{}); err != nil {
				logger.Debug("initialize failed", zap.Error(err))
				return fmt.Errorf("could not start the conversation: %s", flow.UserMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "(type /help for commands)")
			return session.Run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().BoolVar(&newConversation, "new", false, "Start a new conversation instead of resuming")
	return cmd
}

// chatOrchestrator is the orchestrator surface used by the terminal chat.
type chatOrchestrator interface {
	Subscribe(l flow.Listener) (unsubscribe func())
	ForceNewConversation(ctx context.Context, opts flow.InitOptions) error
	HandleUserMessage(ctx context.Context, text string) error
	HandleUserActivity(ctx context.Context, md types.Metadata) error
	HandleButtonClick(ctx context.Context, identifier string) error
}

// chatSession renders orchestrator events as a transcript and turns input
// lines into orchestrator calls.
type chatSession struct {
	orch        chatOrchestrator
	out         io.Writer
	speaker     string
	unsubscribe func()

	mu        sync.Mutex
	buttons   []types.Button
	streaming bool
}

func newChatSession(orch chatOrchestrator, out io.Writer, speaker string) *chatSession {
	if speaker == "" {
		speaker = "companion"
	}
	s := &chatSession{orch: orch, out: out, speaker: speaker}
	s.unsubscribe = orch.Subscribe(s.render)
	return s
}

// Close stops rendering events.
func (s *chatSession) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Run reads input lines until EOF, /quit or ctx is done.
func (s *chatSession) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := s.handleLine(ctx, line)
			if err != nil {
				s.printf("! %s\n", flow.UserMessage(err))
			}
			if quit {
				return nil
			}
		}
	}
}

// handleLine runs one input line. Errors already shown through an error
// event are not returned again.
func (s *chatSession) handleLine(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, silenceEmitted(s.orch.HandleUserMessage(ctx, line))
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "h":
		s.printf("%s\n", chatHelp)
		return false, nil
	case "reset":
		return false, silenceEmitted(s.orch.ForceNewConversation(ctx, flow.InitOptions{}))
	case "button", "b":
		if rest == "" {
			return false, types.NewError(types.ErrInvalidInput, "usage: /button <identifier>")
		}
		return false, silenceEmitted(s.orch.HandleButtonClick(ctx, rest))
	case "activity", "a":
		md, err := parseMetadata(rest)
		if err != nil {
			return false, err
		}
		return false, silenceEmitted(s.orch.HandleUserActivity(ctx, md))
	}

	if n, convErr := strconv.Atoi(cmd); convErr == nil {
		id, ok := s.buttonAt(n)
		if !ok {
			return false, types.NewError(types.ErrInvalidInput, fmt.Sprintf("no button %d", n))
		}
		return false, silenceEmitted(s.orch.HandleButtonClick(ctx, id))
	}
	return false, types.NewError(types.ErrInvalidInput, fmt.Sprintf("unknown command /%s (try /help)", cmd))
}

// silenceEmitted drops errors the orchestrator already reported as events.
// Busy and not-ready rejections are never emitted, so they are kept.
func silenceEmitted(err error) error {
	if err == nil {
		return nil
	}
	if types.IsErrorCode(err, types.ErrTurnInProgress) || types.IsErrorCode(err, types.ErrNotReady) {
		return err
	}
	return nil
}

func parseMetadata(s string) (types.Metadata, error) {
	md := types.Metadata{}
	for _, field := range strings.Fields(s) {
		k, v, ok := strings.Cut(field, "=")
		if !ok || k == "" {
			return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("expected key=value, got %q", field))
		}
		md[k] = v
	}
	return md, nil
}

func (s *chatSession) buttonAt(n int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.buttons) {
		return "", false
	}
	return s.buttons[n-1].Identifier, true
}

func (s *chatSession) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// render prints one event. Events arrive on the turn goroutine.
func (s *chatSession) render(e flow.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case flow.EventInitialized:
		if !e.ExpectMessage {
			s.printf("(conversation resumed)\n")
		}
	case flow.EventMessageReceived:
		if e.Message == nil {
			return
		}
		s.printf("%s: %s\n", s.speaker, e.Message.Text)
		s.buttons = append(s.buttons[:0], e.Message.Buttons...)
		for i, b := range s.buttons {
			s.printf("  [/%d] %s\n", i+1, b.DisplayText)
		}
	case flow.EventAIMessageChunk:
		if !s.streaming {
			s.printf("%s: ", s.speaker)
			s.streaming = true
		}
		s.printf("%s", e.Chunk)
	case flow.EventAIMessageReceived:
		if s.streaming {
			s.printf("\n")
			s.streaming = false
		} else if e.Message != nil {
			s.printf("%s: %s\n", s.speaker, e.Message.Text)
		}
		s.buttons = s.buttons[:0]
	case flow.EventError:
		if s.streaming {
			s.printf("\n")
			s.streaming = false
		}
		s.printf("! %s\n", e.Error)
	}
}
