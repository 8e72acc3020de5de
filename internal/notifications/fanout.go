package notifications

import (
	"context"
	"errors"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

// Fanout forwards every event to each notifier in order. One notifier
// failing does not stop the rest; their errors are joined.
type Fanout []escalation.Notifier

var (
	_ escalation.Notifier      = Fanout(nil)
	_ escalation.ClaimNotifier = Fanout(nil)
)

func (f Fanout) NotifyHuman(ctx context.Context, req escalation.HelpRequest) error {
	return f.each(func(n escalation.Notifier) error { return n.NotifyHuman(ctx, req) })
}

func (f Fanout) NotifyCallerResolved(ctx context.Context, req escalation.HelpRequest) error {
	return f.each(func(n escalation.Notifier) error { return n.NotifyCallerResolved(ctx, req) })
}

func (f Fanout) NotifyCallerTimedOut(ctx context.Context, req escalation.HelpRequest) error {
	return f.each(func(n escalation.Notifier) error { return n.NotifyCallerTimedOut(ctx, req) })
}

// NotifyClaimed forwards to the members that implement
// escalation.ClaimNotifier.
func (f Fanout) NotifyClaimed(ctx context.Context, req escalation.HelpRequest) error {
	return f.each(func(n escalation.Notifier) error {
		if cn, ok := n.(escalation.ClaimNotifier); ok {
			return cn.NotifyClaimed(ctx, req)
		}
		return nil
	})
}

func (f Fanout) each(call func(escalation.Notifier) error) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := call(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
