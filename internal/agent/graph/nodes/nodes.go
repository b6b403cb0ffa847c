package nodes

import (
	"context"
	"errors"
	"fmt"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chatgraph-poc/server/internal/agent/graph/tools"
	"github.com/chatgraph-poc/server/internal/agent/model"
	errx "github.com/chatgraph-poc/server/internal/core/error"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

const (
	NodeChatbot = "chatbot"
	NodeTools   = "tools"
)

// NewChatbotPreHandler records the caller's conversation in the turn state.
func NewChatbotPreHandler() func(context.Context, *model.Conversation, *model.TurnState) (*model.Conversation, error) {
	return func(ctx context.Context, in *model.Conversation, s *model.TurnState) (*model.Conversation, error) {
		if s.Conversation == nil {
			s.Conversation = in
		}
		return in, nil
	}
}

// NewChatbotNode calls the chat model with the whole conversation and appends
// the assistant reply to it.
func NewChatbotNode(cm ChatModel, modelName string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, conv *model.Conversation) (*schema.Message, error) {
		turn := turnFrom(ctx)

		out, err := generate(ctx, cm, conv.Messages())
		if err != nil {
			return nil, turn.fail(&errx.ModelUnavailableError{Err: err})
		}
		if out == nil {
			return nil, turn.fail(&errx.ModelUnavailableError{Err: errors.New("model returned no message")})
		}
		if out.Role == "" {
			out.Role = schema.Assistant
		}
		if out.Role != schema.Assistant {
			return nil, turn.fail(&errx.ModelUnavailableError{Err: fmt.Errorf("model returned a %q message", out.Role)})
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			assignToolCallIDs(s.Conversation, out)
			recordUsage(s, out, modelName)
			s.Conversation.Append(out)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("access turn state: %w", err)
		}

		if len(out.ToolCalls) > 0 {
			logx.Debug().Str("conversation_id", conv.ID).Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Str("conversation_id", conv.ID).Msg("AI response ready")
		}
		turn.emit(out)
		return out, nil
	})
}

// NewToolsCondition routes to the tools node while the model keeps asking for tools.
func NewToolsCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, in *schema.Message) (string, error) {
		if in != nil && len(in.ToolCalls) > 0 {
			return NodeTools, nil
		}
		return compose.END, nil
	}
}

// NewToolsNode resolves every tool call of the last assistant message and
// appends one tool message per call, in call order.
func NewToolsNode(reg *tools.Registry, opts tools.BatchOptions, maxRounds int) *compose.Lambda {
	maxRounds = normalizeMaxRounds(maxRounds)
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*model.Conversation, error) {
		turn := turnFrom(ctx)

		var conv *model.Conversation
		var round int
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			conv = s.Conversation
			if !startToolRound(s, maxRounds) {
				return errx.ErrToolRoundLimit
			}
			round = s.ToolRounds
			return nil
		})
		if err != nil {
			if errors.Is(err, errx.ErrToolRoundLimit) {
				logx.Warn().Str("conversation_id", conv.ID).Int("max_rounds", maxRounds).Msg("Tool round limit reached")
				return nil, turn.fail(errx.ErrToolRoundLimit)
			}
			return nil, fmt.Errorf("access turn state: %w", err)
		}

		results, err := reg.ResolveBatch(ctx, in.ToolCalls, opts)
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", conv.ID).Msg("Tool batch rejected")
			return nil, turn.fail(err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			s.Conversation.Append(results...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("access turn state: %w", err)
		}
		logx.Debug().Str("conversation_id", conv.ID).Int("round", round).Int("tool_count", len(results)).Msg("Tool results appended")
		for _, m := range results {
			turn.emit(m)
		}
		return conv, nil
	})
}

// generate calls cm and reports model callbacks when cm does not report its own.
func generate(ctx context.Context, cm ChatModel, in []*schema.Message) (out *schema.Message, err error) {
	if c, ok := cm.(callbacksChecker); ok && c.IsCallbacksEnabled() {
		return cm.Generate(ctx, in)
	}

	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
		Name:      NodeChatbot,
		Type:      "DispatchModel",
		Component: components.ComponentOfChatModel,
	})
	ctx = einocb.OnStart(ctx, &einomodel.CallbackInput{Messages: in})
	out, err = cm.Generate(ctx, in)
	if err != nil {
		einocb.OnError(ctx, err)
		return nil, err
	}
	cbOut := &einomodel.CallbackOutput{Message: out}
	if out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		u := out.ResponseMeta.Usage
		cbOut.TokenUsage = &einomodel.TokenUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	einocb.OnEnd(ctx, cbOut)
	return out, nil
}

// recordUsage prices the call and exposes the running turn total in Extra.
func recordUsage(s *model.TurnState, out *schema.Message, modelName string) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
	s.TotalCostUSD += totalC

	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"input_cost":        inC,
		"output_cost":       outC,
		"total_cost":        totalC,
	}
	out.Extra["usage_cost_total_usd"] = s.TotalCostUSD

	logx.Debug().
		Str("node", NodeChatbot).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
