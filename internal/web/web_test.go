package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/websocket"

	"github.com/chatgraph-poc/server/internal/agent/graph"
	"github.com/chatgraph-poc/server/internal/agent/model"
	"github.com/chatgraph-poc/server/internal/calendar"
	errx "github.com/chatgraph-poc/server/internal/core/error"
)

type fakeRunner struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (f *fakeRunner) RunTurn(_ context.Context, conv *model.Conversation, _ ...graph.TurnOption) (*schema.Message, error) {
	f.seen = conv.Messages()
	if f.err != nil {
		return nil, f.err
	}
	out := schema.AssistantMessage(f.reply, nil)
	conv.Append(out)
	return out, nil
}

type fakeCalendar struct {
	events []calendar.Event
	err    error
	calls  int
}

func (f *fakeCalendar) UpcomingEvents(context.Context) ([]calendar.Event, error) {
	f.calls++
	return f.events, f.err
}

var calendarConfig = model.CalendarConfig{Keywords: []string{"appointments", "meetings"}, Enabled: true}

func userRequest(content string) ChatRequest {
	return ChatRequest{Messages: []ChatMessage{{Role: "user", Content: content}}}
}

func TestRouterSelect(t *testing.T) {
	r := NewRouter(&fakeRunner{}, &fakeCalendar{}, "", calendarConfig)
	tests := map[string]string{
		"What meetings do I have tomorrow?": RouteCalendar,
		"Any APPOINTMENTS this week":        RouteCalendar,
		"What is a node in LangGraph?":      RouteModel,
	}
	for msg, want := range tests {
		if got := r.Select(msg); got != want {
			t.Errorf("Select(%q) = %s, want %s", msg, got, want)
		}
	}

	disabled := NewRouter(&fakeRunner{}, nil, "", calendarConfig)
	if got := disabled.Select("my meetings"); got != RouteModel {
		t.Fatalf("calendar route used without a source: %s", got)
	}
}

func TestRouterReplyFromModel(t *testing.T) {
	runner := &fakeRunner{reply: "Hello!"}
	r := NewRouter(runner, &fakeCalendar{}, "You are a helpful assistant.", calendarConfig)

	req := ChatRequest{Messages: []ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hi there"},
		{Role: "user", Content: "how are you?"},
	}}
	reply, err := r.Reply(context.Background(), req)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.Role != "assistant" || reply.Content != "Hello!" {
		t.Fatalf("reply = %+v", reply)
	}
	if len(runner.seen) != 4 || runner.seen[0].Content != "You are a helpful assistant." || runner.seen[3].Content != "how are you?" {
		t.Fatalf("conversation = %+v", runner.seen)
	}
}

func TestRouterReplyFromCalendar(t *testing.T) {
	cal := &fakeCalendar{events: []calendar.Event{{Subject: "Standup", Start: "2026-10-20T09:00:00"}}}
	runner := &fakeRunner{reply: "unused"}
	r := NewRouter(runner, cal, "", calendarConfig)

	reply, err := r.Reply(context.Background(), userRequest("list my meetings"))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Content != "Here are your upcoming events: Standup (2026-10-20T09:00:00)" {
		t.Fatalf("reply = %q", reply.Content)
	}
	if runner.seen != nil {
		t.Fatal("model was called for a calendar request")
	}

	cal.err = errors.New("403 Forbidden")
	_, err = r.Reply(context.Background(), userRequest("list my meetings"))
	var calErr *CalendarError
	if !errors.As(err, &calErr) || errorText(err) != "Error retrieving calendar data: 403 Forbidden" {
		t.Fatalf("err = %v", err)
	}
}

func TestRouterReplyErrors(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		req      ChatRequest
		wantText string
	}{
		{name: "no user message", runner: &fakeRunner{}, req: ChatRequest{}, wantText: "request has no user message"},
		{name: "bad role", runner: &fakeRunner{}, req: ChatRequest{Messages: []ChatMessage{{Role: "tool", Content: "x"}, {Role: "user", Content: "hi"}}}, wantText: `unsupported role "tool"`},
		{name: "empty reply", runner: &fakeRunner{reply: "  "}, req: userRequest("hi"), wantText: "No response generated"},
		{name: "model down", runner: &fakeRunner{err: &errx.ModelUnavailableError{Err: errors.New("dial tcp")}}, req: userRequest("hi"), wantText: errx.ModelUnavailableMessage},
		{name: "unknown tool", runner: &fakeRunner{err: &errx.UnknownToolError{Name: "nonexistent_tool"}}, req: userRequest("hi"), wantText: errx.UnknownToolMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.runner, nil, "", calendarConfig)
			_, err := r.Reply(context.Background(), tt.req)
			if err == nil || !strings.Contains(errorText(err), tt.wantText) {
				t.Fatalf("err = %v (text %q), want %q", err, errorText(err), tt.wantText)
			}
		})
	}
}

func newTestServer(t *testing.T, runner *fakeRunner, cal calendar.Source) *httptest.Server {
	t.Helper()
	s, err := NewServer(NewRouter(runner, cal, "You are a helpful assistant.", calendarConfig), model.ServerConfig{TurnTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	h, err := s.Handler()
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, url, body string) (int, []ChatReply) {
	t.Helper()
	resp, err := http.Post(url+"/chat/stream", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var lines []ChatReply
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var r ChatReply
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		lines = append(lines, r)
	}
	return resp.StatusCode, lines
}

func TestChatStream(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{reply: "A node is a function."}, &fakeCalendar{})

	status, lines := postChat(t, srv.URL, `{"messages":[{"role":"user","content":"What is a node in LangGraph?"}]}`)
	if status != http.StatusOK || len(lines) != 1 {
		t.Fatalf("status = %d, lines = %+v", status, lines)
	}
	if lines[0].Role != "assistant" || lines[0].Content != "A node is a function." || lines[0].Error != "" {
		t.Fatalf("line = %+v", lines[0])
	}
}

func TestChatStreamErrors(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{reply: ""}, &fakeCalendar{})

	status, lines := postChat(t, srv.URL, `{"messages":[{"role":"user","content":"hi"}]}`)
	if status != http.StatusOK || len(lines) != 1 || lines[0].Error != "No response generated" {
		t.Fatalf("status = %d, lines = %+v", status, lines)
	}

	status, lines = postChat(t, srv.URL, `{"messages":`)
	if status != http.StatusBadRequest || len(lines) != 1 || lines[0].Error == "" {
		t.Fatalf("status = %d, lines = %+v", status, lines)
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, nil)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/chat/stream") {
		t.Fatalf("index status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "online" {
		t.Fatalf("health = %+v", health)
	}

	resp, err = http.Get(srv.URL + "/chat/stream")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /chat/stream status = %d", resp.StatusCode)
	}
}

func TestChatWebsocket(t *testing.T) {
	cal := &fakeCalendar{events: []calendar.Event{{Subject: "Review"}}}
	srv := newTestServer(t, &fakeRunner{reply: "pong"}, cal)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	exchange := func(body string) ChatReply {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(body)); err != nil {
			t.Fatal(err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var reply ChatReply
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatal(err)
		}
		return reply
	}

	if r := exchange(`{"messages":[{"role":"user","content":"ping"}]}`); r.Content != "pong" {
		t.Fatalf("reply = %+v", r)
	}
	if r := exchange(`{"messages":[{"role":"user","content":"my meetings"}]}`); r.Content != "Here are your upcoming events: Review" {
		t.Fatalf("reply = %+v", r)
	}
	if r := exchange(`not json`); r.Error == "" {
		t.Fatalf("reply = %+v", r)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, err := NewServer(NewRouter(&fakeRunner{}, nil, "", calendarConfig), model.ServerConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
