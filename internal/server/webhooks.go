package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"stowplan/internal/config"
	"stowplan/internal/domain"
	"stowplan/internal/logging"
	"stowplan/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher polls the event log and POSTs matching events to each
// configured hook. Each hook keeps its own cursor and starts at the newest
// event present when it is first polled.
type WebhookDispatcher struct {
	repo     repo.Repo
	webhooks []config.WebhookConfig
	client   *http.Client
	log      logging.Logger
	interval time.Duration

	mu      sync.Mutex
	cursors map[int]int64
}

func NewWebhookDispatcher(r repo.Repo, hooks []config.WebhookConfig, log logging.Logger) *WebhookDispatcher {
	if log == nil {
		log = logging.Noop()
	}
	return &WebhookDispatcher{
		repo:     r,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log,
		interval: defaultWebhookInterval,
		cursors:  make(map[int]int64),
	}
}

// Run delivers events until ctx is done.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	if len(d.webhooks) == 0 {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchAll makes one delivery pass over every enabled hook.
func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	events, err := d.repo.EventsAfter(ctx, defaultWebhookBatch, cursor)
	if err != nil {
		d.log.Error(ctx, "webhook: fetch events failed", logging.Err(err))
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			// retried from the same cursor on the next pass
			d.log.Warn(ctx, "webhook: delivery failed", logging.String("url", hook.URL), logging.Err(err))
			return
		}
		d.setCursor(idx, evt.ID)
	}
}

// Prime pins every hook's cursor at the current end of the event log.
func (d *WebhookDispatcher) Prime(ctx context.Context) {
	for i := range d.webhooks {
		d.cursorFor(ctx, i)
	}
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.repo.LatestEventID(ctx)
	if err != nil {
		d.log.Error(ctx, "webhook: init cursor failed", logging.Err(err))
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *WebhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Stowplan-Event", evt.Type)
	req.Header.Set("X-Stowplan-Delivery", fmt.Sprintf("%d", evt.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Stowplan-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
