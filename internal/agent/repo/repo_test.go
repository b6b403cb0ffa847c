package repo

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/chatgraph-poc/server/internal/agent/model"
	errx "github.com/chatgraph-poc/server/internal/core/error"
)

func newRedisRepo(t *testing.T, ttl time.Duration) (*RedisConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisConversationRepository(rdb, ttl), mr
}

func TestConversationRepositories(t *testing.T) {
	redisRepo, _ := newRedisRepo(t, time.Minute)
	repos := map[string]model.ConversationRepository{
		"memory": NewMemoryConversationRepository(),
		"redis":  redisRepo,
	}

	for name, r := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			h, err := r.LoadHistory(ctx, "missing")
			if err != nil || len(h.Messages) != 0 || h.ConversationID != "missing" {
				t.Fatalf("empty history = %+v, %v", h, err)
			}

			call := schema.ToolCall{ID: "call_1", Function: schema.FunctionCall{Name: "search", Arguments: `{"query":"q"}`}}
			err = r.AddMessages(ctx, "c1",
				schema.UserMessage("What is a node in LangGraph?"),
				schema.AssistantMessage("", []schema.ToolCall{call}),
				nil,
			)
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if err := r.AddMessages(ctx, "c1", schema.ToolMessage(`{"results":[]}`, "call_1", schema.WithToolName("search"))); err != nil {
				t.Fatalf("add tool message: %v", err)
			}
			if err := r.AddMessages(ctx, "c1"); err != nil {
				t.Fatalf("add nothing: %v", err)
			}

			n, err := r.GetMessageCount(ctx, "c1")
			if err != nil || n != 3 {
				t.Fatalf("count = %d, %v", n, err)
			}

			h, err = r.LoadHistory(ctx, "c1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			got := h.Messages
			if len(got) != 3 || got[0].Role != schema.User || got[1].Role != schema.Assistant || got[2].Role != schema.Tool {
				t.Fatalf("history = %+v", got)
			}
			if got[1].ToolCalls[0].Function.Name != "search" || got[2].ToolCallID != "call_1" || got[2].ToolName != "search" {
				t.Fatalf("tool fields lost: %+v %+v", got[1], got[2])
			}
			if err := model.NewConversation("c1", got...).Validate(); err != nil {
				t.Fatalf("reloaded conversation invalid: %v", err)
			}

			if err := r.ClearHistory(ctx, "c1"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if n, _ := r.GetMessageCount(ctx, "c1"); n != 0 {
				t.Fatalf("count after clear = %d", n)
			}
		})
	}
}

func TestRedisConversationRepositoryExpires(t *testing.T) {
	r, mr := newRedisRepo(t, 10*time.Minute)
	ctx := context.Background()

	if err := r.AddMessages(ctx, "c1", schema.UserMessage("hi")); err != nil {
		t.Fatal(err)
	}
	key := r.conversationKey("c1")
	if ttl := mr.TTL(key); ttl != 10*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	mr.FastForward(11 * time.Minute)
	if n, _ := r.GetMessageCount(ctx, "c1"); n != 0 {
		t.Fatalf("conversation survived its ttl with %d messages", n)
	}
}

func TestRedisConversationRepositoryErrors(t *testing.T) {
	r, mr := newRedisRepo(t, time.Minute)
	ctx := context.Background()

	mr.SetError("LOADING Redis is loading the dataset in memory")
	err := r.AddMessages(ctx, "c1", schema.UserMessage("hi"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errx.StatusOf(err) != http.StatusBadGateway {
		t.Fatalf("status = %d", errx.StatusOf(err))
	}
	mr.SetError("")

	if err := mr.Set(r.conversationKey("bad"), "not a list"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.LoadHistory(ctx, "bad"); err == nil {
		t.Fatal("expected WRONGTYPE error")
	}
}
