package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/escalation"
)

// Config selects where notifications are delivered. With nothing set every
// notification is only logged.
type Config struct {
	SupervisorWebhook string
	CallerWebhook     string
	Slack             *SlackClient
}

// Dispatcher delivers escalation events and records each attempt in the
// notification log. It implements escalation.Notifier.
type Dispatcher struct {
	store  *Store
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil store disables the log.
func NewDispatcher(store *Store, cfg Config) *Dispatcher {
	return &Dispatcher{
		store: store,
		cfg:   cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

var _ escalation.Notifier = (*Dispatcher)(nil)

// NotifyHuman alerts the supervisors about a new help request.
func (d *Dispatcher) NotifyHuman(ctx context.Context, req escalation.HelpRequest) error {
	n := Notification{
		Type:      TypeSupervisorAlert,
		Recipient: "supervisor",
		RequestID: req.ID,
		Title:     "Help needed for " + callerLabel(req),
		Message:   req.Question,
	}

	var targets []target
	if d.cfg.Slack != nil {
		targets = append(targets, target{ChannelSlack, d.cfg.Slack.Channel})
	}
	if d.cfg.SupervisorWebhook != "" {
		targets = append(targets, target{ChannelWebhook, d.cfg.SupervisorWebhook})
	}
	return d.deliver(ctx, n, req, targets)
}

// NotifyCallerResolved sends the supervisor's answer back to the caller.
func (d *Dispatcher) NotifyCallerResolved(ctx context.Context, req escalation.HelpRequest) error {
	n := Notification{
		Type:      TypeCallerAnswer,
		Recipient: req.CallerID,
		RequestID: req.ID,
		Title:     "Answer to: " + req.Question,
		Message:   req.HumanResponse,
	}
	return d.deliver(ctx, n, req, d.callerTargets())
}

// NotifyCallerTimedOut tells the caller their question is still open.
func (d *Dispatcher) NotifyCallerTimedOut(ctx context.Context, req escalation.HelpRequest) error {
	n := Notification{
		Type:      TypeCallerTimeout,
		Recipient: req.CallerID,
		RequestID: req.ID,
		Title:     "Still working on: " + req.Question,
		Message:   TimeoutMessage,
	}
	return d.deliver(ctx, n, req, d.callerTargets())
}

func (d *Dispatcher) callerTargets() []target {
	if d.cfg.CallerWebhook == "" {
		return nil
	}
	return []target{{ChannelWebhook, d.cfg.CallerWebhook}}
}

type target struct {
	channel Channel
	address string
}

// deliver sends n over every target and logs each attempt. Without targets
// the notification is written to the process log and counts as delivered.
func (d *Dispatcher) deliver(ctx context.Context, n Notification, req escalation.HelpRequest, targets []target) error {
	log.Printf("notifications: [%s] to %s (request %s): %s | %s", n.Type, n.Recipient, n.RequestID, n.Title, n.Message)

	if len(targets) == 0 {
		n.Channel = ChannelLog
		n.Delivered = true
		return d.record(ctx, n)
	}

	var errs []error
	for _, t := range targets {
		attempt := n
		attempt.ID = ""
		attempt.Channel = t.channel

		var err error
		switch t.channel {
		case ChannelSlack:
			_, err = d.cfg.Slack.Post(ctx, SlackMessage{
				Title:     n.Title,
				Question:  req.Question,
				Caller:    callerLabel(req),
				RequestID: req.ID,
				Answer:    req.HumanResponse,
			})
		case ChannelWebhook:
			err = d.sendWebhook(ctx, t.address, webhookPayload{
				Type:      n.Type,
				Recipient: n.Recipient,
				Title:     n.Title,
				Message:   n.Message,
				Request:   req,
			})
		}

		attempt.Delivered = err == nil
		if err != nil {
			log.Printf("notifications: %s delivery for request %s failed: %v", t.channel, n.RequestID, err)
			attempt.Error = err.Error()
			errs = append(errs, apperr.Dependency(string(t.channel), err))
		}
		if rerr := d.record(ctx, attempt); rerr != nil {
			errs = append(errs, rerr)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) record(ctx context.Context, n Notification) error {
	if d.store == nil {
		return nil
	}
	n.CreatedAt = d.now()
	if err := d.store.Create(ctx, &n); err != nil {
		return fmt.Errorf("recording %s notification: %w", n.Type, err)
	}
	return nil
}

type webhookPayload struct {
	Type      Type                   `json:"type"`
	Recipient string                 `json:"recipient"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Request   escalation.HelpRequest `json:"request"`
}

// sendWebhook POSTs payload as JSON to url.
func (d *Dispatcher) sendWebhook(ctx context.Context, url string, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func callerLabel(req escalation.HelpRequest) string {
	if req.CallerName != "" {
		return req.CallerName + " (" + req.CallerID + ")"
	}
	return req.CallerID
}
