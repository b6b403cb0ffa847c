package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chatgraph-poc/server/internal/agent/graph"
	"github.com/chatgraph-poc/server/internal/agent/model"
	"github.com/chatgraph-poc/server/internal/calendar"
	errx "github.com/chatgraph-poc/server/internal/core/error"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

// ErrNoResponse is returned by a route that finished without a reply.
var ErrNoResponse = errors.New("No response generated")

const (
	RouteModel    = "model"
	RouteCalendar = "calendar"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatReply is one line of the /chat/stream response.
type ChatReply struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CalendarError wraps a failed calendar lookup.
type CalendarError struct {
	Err error
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("Error retrieving calendar data: %v", e.Err)
}

func (e *CalendarError) Unwrap() error {
	return e.Err
}

// Router sends a chat request either to the dispatch loop or to the calendar.
type Router struct {
	runner       graph.Runner
	calendar     calendar.Source
	keywords     []string
	systemPrompt string
}

// NewRouter creates a Router. A nil source disables the calendar route.
func NewRouter(runner graph.Runner, source calendar.Source, systemPrompt string, config model.CalendarConfig) *Router {
	r := &Router{runner: runner, systemPrompt: systemPrompt}
	if source != nil && config.Enabled {
		r.calendar = source
		for _, k := range config.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				r.keywords = append(r.keywords, k)
			}
		}
	}
	return r
}

// Select names the route for a user message.
func (r *Router) Select(userMessage string) string {
	lower := strings.ToLower(userMessage)
	for _, k := range r.keywords {
		if strings.Contains(lower, k) {
			return RouteCalendar
		}
	}
	return RouteModel
}

// Reply answers req with an assistant message, or an error. It returns
// ErrNoResponse when the chosen route produced nothing.
func (r *Router) Reply(ctx context.Context, req ChatRequest) (*ChatMessage, error) {
	userMessage, err := lastUserMessage(req.Messages)
	if err != nil {
		return nil, err
	}

	route := r.Select(userMessage)
	logx.Debug().Str("route", route).Int("message_count", len(req.Messages)).Msg("Routing chat request")

	var reply *ChatMessage
	switch route {
	case RouteCalendar:
		reply, err = r.replyFromCalendar(ctx)
	default:
		reply, err = r.replyFromModel(ctx, req.Messages)
	}
	if err != nil {
		return nil, err
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return nil, ErrNoResponse
	}
	return reply, nil
}

func (r *Router) replyFromModel(ctx context.Context, msgs []ChatMessage) (*ChatMessage, error) {
	conv := model.NewConversation("web")
	if r.systemPrompt != "" {
		conv.Append(schema.SystemMessage(r.systemPrompt))
	}
	for i, m := range msgs {
		switch schema.RoleType(m.Role) {
		case schema.User:
			conv.Append(schema.UserMessage(m.Content))
		case schema.Assistant:
			conv.Append(schema.AssistantMessage(m.Content, nil))
		default:
			return nil, errx.BadRequest(fmt.Errorf("message %d: unsupported role %q", i, m.Role))
		}
	}

	out, err := r.runner.RunTurn(ctx, conv)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return &ChatMessage{Role: string(schema.Assistant), Content: out.Content}, nil
}

func (r *Router) replyFromCalendar(ctx context.Context) (*ChatMessage, error) {
	events, err := r.calendar.UpcomingEvents(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Error calling Microsoft Graph API")
		return nil, &CalendarError{Err: err}
	}
	return &ChatMessage{Role: string(schema.Assistant), Content: calendar.FormatEvents(events)}, nil
}

func lastUserMessage(msgs []ChatMessage) (string, error) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == string(schema.User) {
			if strings.TrimSpace(msgs[i].Content) == "" {
				break
			}
			return msgs[i].Content, nil
		}
	}
	return "", errx.BadRequest(errors.New("request has no user message"))
}

// errorText is the text put in the "error" field for err.
func errorText(err error) string {
	var calErr *CalendarError
	var appErr *errx.AppError
	switch {
	case errors.Is(err, ErrNoResponse):
		return ErrNoResponse.Error()
	case errors.As(err, &calErr):
		return calErr.Error()
	case errors.As(err, &appErr):
		if appErr.Status == http.StatusBadRequest {
			return appErr.Error()
		}
		return appErr.Message
	default:
		return errx.FromTurnError(err).Message
	}
}
