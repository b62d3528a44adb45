package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
)

const userAgent = "Scorecard-Go/0.1.0"

// Event identifies a notification category.
type Event string

const (
	EventRunStarted    Event = "run_started"
	EventRunCompleted  Event = "run_completed"
	EventRunFailed     Event = "run_failed"
	EventRunReview     Event = "run_review"
	EventDriftDetected Event = "drift_detected"
	EventModelPromoted Event = "model_promoted"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event-specific values referenced when formatting messages.
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
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		enabled:     enabledEvents(cfg),
		dedupWindow: time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		lastSent:    make(map[string]time.Time),
	}
}

func enabledEvents(cfg *config.Config) map[Event]bool {
	n := cfg.Notifications
	return map[Event]bool{
		EventRunStarted:    n.Training,
		EventRunCompleted:  n.Training,
		EventRunFailed:     n.Errors,
		EventRunReview:     n.Errors,
		EventDriftDetected: n.Drift,
		EventModelPromoted: n.Promotion,
		EventError:         n.Errors,
		EventTest:          true,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	enabled     map[Event]bool
	dedupWindow time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if enabled, ok := n.enabled[event]; ok && !enabled {
		return nil
	}
	msg := formatMessage(event, payload)
	if msg.body == "" {
		return nil
	}
	if n.shouldSuppress(event, msg.body) {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) shouldSuppress(event Event, body string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	key := string(event) + "\x00" + body
	now := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.lastSent[key] = now
	return false
}

func formatMessage(event Event, payload Payload) message {
	str := func(key string) string {
		if payload == nil {
			return ""
		}
		if v, ok := payload[key]; ok {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	}

	switch event {
	case EventRunStarted:
		return message{
			title: "Scorecard - Run Started",
			body:  fmt.Sprintf("Training run #%s started (%s)", str("run_id"), str("trigger")),
			tags:  []string{"scorecard", "run", "started"},
		}
	case EventRunCompleted:
		return message{
			title: "Scorecard - Run Complete",
			body:  fmt.Sprintf("Run #%s completed: model %s published", str("run_id"), str("model_version")),
			tags:  []string{"scorecard", "run", "completed"},
		}
	case EventRunFailed:
		return message{
			title:    "Scorecard - Run Failed",
			body:     fmt.Sprintf("Run #%s failed at %s: %s", str("run_id"), str("stage"), str("error")),
			tags:     []string{"scorecard", "run", "failed"},
			priority: "high",
		}
	case EventRunReview:
		return message{
			title:    "Scorecard - Review Needed",
			body:     fmt.Sprintf("Run #%s needs review: %s", str("run_id"), str("reason")),
			tags:     []string{"scorecard", "run", "review"},
			priority: "high",
		}
	case EventDriftDetected:
		return message{
			title:    "Scorecard - Drift Detected",
			body:     fmt.Sprintf("Data drift detected: %s of features drifted (score %s)", str("share"), str("score")),
			tags:     []string{"scorecard", "drift", "alert"},
			priority: "high",
		}
	case EventModelPromoted:
		return message{
			title: "Scorecard - Model Promoted",
			body:  fmt.Sprintf("Model %s promoted to serving", str("model_version")),
			tags:  []string{"scorecard", "model", "promoted"},
		}
	case EventError:
		body := "Error"
		if label := str("context"); label != "" {
			body += " with " + label
		}
		body += ": "
		if errText := str("error"); errText != "" {
			body += errText
		} else {
			body += "unknown"
		}
		return message{
			title:    "Scorecard - Error",
			body:     body,
			tags:     []string{"scorecard", "error", "alert"},
			priority: "high",
		}
	case EventTest:
		return message{
			title:    "Scorecard - Test",
			body:     "Notification system test",
			tags:     []string{"scorecard", "test"},
			priority: "low",
		}
	default:
		return message{}
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

// Noop returns a notification service that discards everything. Used in tests.
func Noop() Service { return noopService{} }
