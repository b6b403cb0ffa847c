package calendar

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"

	logx "github.com/chatgraph-poc/server/pkg/logger"
)

// GraphScope is the Microsoft Graph scope used with the app's credential.
const GraphScope = "https://graph.microsoft.com/.default"

// Event is a calendar entry of the signed-in user.
type Event struct {
	Subject  string `json:"subject"`
	Start    string `json:"start"`
	TimeZone string `json:"time_zone,omitempty"`
}

// Source lists the signed-in user's calendar events.
type Source interface {
	UpcomingEvents(ctx context.Context) ([]Event, error)
}

// GraphSource reads me/events from Microsoft Graph.
type GraphSource struct {
	client *msgraphsdk.GraphServiceClient
}

func NewGraphSource(cred azcore.TokenCredential) (*GraphSource, error) {
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{GraphScope})
	if err != nil {
		return nil, fmt.Errorf("graph client: %w", err)
	}
	return &GraphSource{client: client}, nil
}

func (s *GraphSource) UpcomingEvents(ctx context.Context) ([]Event, error) {
	resp, err := s.client.Me().Events().Get(ctx, nil)
	if err != nil {
		return nil, err
	}
	items := resp.GetValue()
	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, toEvent(item))
	}
	logx.Debug().Int("event_count", len(events)).Msg("Calendar events loaded")
	return events, nil
}

func toEvent(item models.Eventable) Event {
	var ev Event
	if item == nil {
		return ev
	}
	if s := item.GetSubject(); s != nil {
		ev.Subject = *s
	}
	if start := item.GetStart(); start != nil {
		if dt := start.GetDateTime(); dt != nil {
			ev.Start = *dt
		}
		if tz := start.GetTimeZone(); tz != nil {
			ev.TimeZone = *tz
		}
	}
	return ev
}

// FormatEvents renders events as the assistant's calendar reply.
func FormatEvents(events []Event) string {
	if len(events) == 0 {
		return "Here are your upcoming events: none."
	}
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		subject := ev.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		if ev.Start == "" {
			parts = append(parts, subject)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", subject, ev.Start))
	}
	return "Here are your upcoming events: " + strings.Join(parts, "; ")
}
