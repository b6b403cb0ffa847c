package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chatgraph-poc/server/internal/agent/graph"
	"github.com/chatgraph-poc/server/internal/agent/model"
	"github.com/chatgraph-poc/server/internal/container"
	errx "github.com/chatgraph-poc/server/internal/core/error"
)

// fallbackQuestion is asked when stdin has nothing to read.
const fallbackQuestion = "What do you know about LangGraph?"

var (
	chatMessage      string
	chatConversation string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatConversation, "session", "s", "", "Conversation ID (random when empty)")
}

var exitCommands = map[string]bool{
	"quit": true,
	"exit": true,
	"q":    true,
}

// asker is the part of conversations.Manager the prompt loop needs.
type asker interface {
	Ask(ctx context.Context, in model.QueryInput, opts ...graph.TurnOption) (*schema.Message, error)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, appConfig)
	if err != nil {
		return err
	}
	defer c.Close()

	manager, err := c.Manager()
	if err != nil {
		return err
	}

	conversationID := chatConversation
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	session := &chatSession{assistant: manager, conversationID: conversationID, out: cmd.OutOrStdout()}

	if chatMessage != "" {
		session.ask(ctx, chatMessage)
		return nil
	}
	return session.loop(ctx, cmd.InOrStdin())
}

type chatSession struct {
	assistant      asker
	conversationID string
	out            io.Writer
}

// loop prompts until the user quits or input ends. When the very first read
// finds no input, the fallback question is asked once.
func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	asked := false
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		}
		fmt.Fprint(s.out, "User: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if !asked {
				fmt.Fprintln(s.out, fallbackQuestion)
				s.ask(ctx, fallbackQuestion)
			} else {
				fmt.Fprintln(s.out)
			}
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if exitCommands[strings.ToLower(line)] {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
		if line == "" {
			continue
		}
		asked = true
		s.ask(ctx, line)
	}
}

// ask runs one turn and prints every message it appends.
func (s *chatSession) ask(ctx context.Context, query string) {
	hook := graph.WithMessageHook(func(m *schema.Message) {
		fmt.Fprintf(s.out, "Assistant: %s\n", m.Content)
	})
	_, err := s.assistant.Ask(ctx, model.QueryInput{ConversationID: s.conversationID, Query: query}, hook)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", errx.FromTurnError(err).Message)
	}
}
