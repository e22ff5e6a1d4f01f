package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"siksha/internal/config"
	"siksha/internal/textutil"
)

const userAgent = "Siksha-Go/0.1.0"

// Event names a notification-worthy pipeline outcome.
type Event string

const (
	EventLessonCompleted Event = "lesson_completed"
	EventLessonFailed    Event = "lesson_failed"
	EventLessonCancelled Event = "lesson_cancelled"
	EventTest            Event = "test"
)

// Payload carries event fields: "topic", "audience", "videoURL", "duration",
// "stage" and "error" are understood.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	errors    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	data, ok := n.format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) format(event Event, fields Payload) (payload, bool) {
	topic := textutil.Title(stringField(fields, "topic"))
	if topic == "" {
		topic = "Untitled lesson"
	}
	switch event {
	case EventLessonCompleted:
		if !n.completed {
			return payload{}, false
		}
		message := fmt.Sprintf("✅ Lesson ready: %s", topic)
		if audience := stringField(fields, "audience"); audience != "" {
			message += fmt.Sprintf(" (%s)", audience)
		}
		if d, ok := fields["duration"].(time.Duration); ok && d > 0 {
			message += fmt.Sprintf(" in %s", d.Round(time.Second))
		}
		if url := stringField(fields, "videoURL"); url != "" {
			message += "\n" + url
		}
		return payload{
			title:   "Siksha - Lesson Ready",
			message: message,
			tags:    []string{"siksha", "lesson", "completed"},
		}, true
	case EventLessonFailed:
		if !n.errors {
			return payload{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ ")
		builder.WriteString(topic)
		builder.WriteString(" failed")
		if stage := stringField(fields, "stage"); stage != "" {
			builder.WriteString(" during ")
			builder.WriteString(stage)
		}
		builder.WriteString(": ")
		if errText := stringField(fields, "error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Siksha - Error",
			message:  builder.String(),
			tags:     []string{"siksha", "error", "alert"},
			priority: "high",
		}, true
	case EventLessonCancelled:
		if !n.errors {
			return payload{}, false
		}
		return payload{
			title:   "Siksha - Cancelled",
			message: fmt.Sprintf("Lesson generation cancelled: %s", topic),
			tags:    []string{"siksha", "lesson", "cancelled"},
		}, true
	case EventTest:
		return payload{
			title:    "Siksha - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"siksha", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func stringField(fields Payload, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
