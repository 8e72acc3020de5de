package escalation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/handoff/internal/audit"
	"github.com/ziadkadry99/handoff/internal/knowledge"
	"github.com/ziadkadry99/handoff/internal/matcher"
)

// Searcher looks questions up in the knowledge store.
type Searcher interface {
	Lookup(ctx context.Context, question string) (matcher.Result, error)
}

// KnowledgeWriter stores learned answers.
type KnowledgeWriter interface {
	Upsert(ctx context.Context, e knowledge.Entry) (*knowledge.Entry, error)
}

// Options holds the optional collaborators of a Coordinator.
type Options struct {
	SweepInterval time.Duration
	Linker        SessionLinker
	Auditor       audit.Logger
}

// SearchResponse is the transport-neutral answer to a search.
type SearchResponse struct {
	Found      bool          `json:"found"`
	Answer     string        `json:"answer,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Category   string        `json:"category,omitempty"`
	EntryID    string        `json:"entry_id,omitempty"`
	Score      float64       `json:"score"`
	Stage      matcher.Stage `json:"stage,omitempty"`
}

// ResolveResult reports a resolution. The ledger transition is committed
// even when LearnErr is set.
type ResolveResult struct {
	Request  HelpRequest      `json:"request"`
	Learned  *knowledge.Entry `json:"learned,omitempty"`
	LearnErr error            `json:"-"`
}

// Coordinator ties the matcher, the ledger, the knowledge store and the
// notifier together, and runs the periodic timeout sweep.
type Coordinator struct {
	ledger    *Ledger
	searcher  Searcher
	knowledge KnowledgeWriter
	notifier  Notifier
	linker    SessionLinker
	auditor   audit.Logger
	interval  time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator wires a coordinator. A nil notifier discards notifications.
func NewCoordinator(ledger *Ledger, searcher Searcher, kw KnowledgeWriter, notifier Notifier, opts Options) *Coordinator {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	return &Coordinator{
		ledger:    ledger,
		searcher:  searcher,
		knowledge: kw,
		notifier:  notifier,
		linker:    opts.Linker,
		auditor:   opts.Auditor,
		interval:  opts.SweepInterval,
		now:       time.Now,
	}
}

// Search looks a question up without escalating.
func (c *Coordinator) Search(ctx context.Context, question string) (*SearchResponse, error) {
	res, err := c.searcher.Lookup(ctx, question)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return &SearchResponse{Found: false, Score: res.Score}, nil
	}
	return &SearchResponse{
		Found:      true,
		Answer:     res.Entry.Answer,
		Confidence: res.Entry.Confidence,
		Category:   res.Category,
		EntryID:    res.Entry.ID,
		Score:      res.Score,
		Stage:      res.Stage,
	}, nil
}

// HandleUnknown escalates a question the agent could not answer. The
// request is created before anyone is notified; link and notification
// failures are logged and do not fail the call.
func (c *Coordinator) HandleUnknown(ctx context.Context, in CreateInput) (*HelpRequest, error) {
	req, err := c.ledger.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	log.Printf("escalation: created %s for session %s", req.ID, req.SessionID)

	if c.linker != nil {
		if err := c.linker.LinkHelpRequest(ctx, req.SessionID, req.ID); err != nil {
			log.Printf("escalation: linking %s to session %s: %v", req.ID, req.SessionID, err)
		}
	}
	c.record(ctx, audit.Entry{
		ActorType: audit.ActorCaller, ActorID: req.CallerID,
		Action: audit.ActionEscalationCreated, SubjectType: audit.SubjectHelpRequest, SubjectID: req.ID,
		Summary: req.Question, NewValue: string(req.Status),
	})
	if err := c.notifier.NotifyHuman(ctx, *req); err != nil {
		log.Printf("escalation: notifying supervisor about %s: %v", req.ID, err)
	}
	return req, nil
}

// Resolve commits a human answer, writes it to the knowledge store and
// tells the caller. The ledger is the source of truth: a failed knowledge
// write is reported in the result, never rolled back.
func (c *Coordinator) Resolve(ctx context.Context, id, response, resolverID string) (*ResolveResult, error) {
	req, err := c.ledger.Resolve(ctx, id, response, resolverID)
	if err != nil {
		return nil, err
	}
	log.Printf("escalation: %s resolved by %s", req.ID, req.ResolverID)
	c.record(ctx, audit.Entry{
		ActorType: audit.ActorSupervisor, ActorID: req.ResolverID,
		Action: audit.ActionEscalationResolved, SubjectType: audit.SubjectHelpRequest, SubjectID: req.ID,
		Summary: req.Question, NewValue: req.HumanResponse,
	})

	result := &ResolveResult{Request: *req}
	learned, err := c.knowledge.Upsert(ctx, knowledge.Entry{
		Question:  req.Question,
		Answer:    req.HumanResponse,
		Category:  knowledge.CategorySupervisorLearned,
		Source:    knowledge.SourceHumanResolved,
		CreatedBy: req.ResolverID,
	})
	if err != nil {
		result.LearnErr = fmt.Errorf("learning answer for %s: %w", req.ID, err)
		log.Printf("escalation: %v", result.LearnErr)
	} else {
		result.Learned = learned
		c.record(ctx, audit.Entry{
			ActorType: audit.ActorSupervisor, ActorID: req.ResolverID,
			Action: audit.ActionKnowledgeLearned, SubjectType: audit.SubjectKnowledgeEntry, SubjectID: learned.ID,
			Summary: learned.Question,
		})
	}

	if err := c.notifier.NotifyCallerResolved(ctx, *req); err != nil {
		log.Printf("escalation: notifying caller %s about %s: %v", req.CallerID, req.ID, err)
	}
	return result, nil
}

// Claim marks a pending request as being handled by resolverID.
func (c *Coordinator) Claim(ctx context.Context, id, resolverID string) (*HelpRequest, error) {
	req, err := c.ledger.Claim(ctx, id, resolverID)
	if err != nil {
		return nil, err
	}
	c.record(ctx, audit.Entry{
		ActorType: audit.ActorSupervisor, ActorID: resolverID,
		Action: audit.ActionEscalationClaimed, SubjectType: audit.SubjectHelpRequest, SubjectID: req.ID,
		PreviousValue: string(StatusPending), NewValue: string(req.Status),
	})
	if cn, ok := c.notifier.(ClaimNotifier); ok {
		if err := cn.NotifyClaimed(ctx, *req); err != nil {
			log.Printf("escalation: announcing claim of %s: %v", req.ID, err)
		}
	}
	return req, nil
}

// Get returns a request by id.
func (c *Coordinator) Get(ctx context.Context, id string) (*HelpRequest, error) {
	return c.ledger.Get(ctx, id)
}

// ListPending returns open requests, newest first.
func (c *Coordinator) ListPending(ctx context.Context) ([]HelpRequest, error) {
	return c.ledger.ListPending(ctx)
}

// ListHistory returns a page of requests.
func (c *Coordinator) ListHistory(ctx context.Context, f HistoryFilter) (*HistoryPage, error) {
	return c.ledger.ListHistory(ctx, f)
}

// Stats counts requests per status.
func (c *Coordinator) Stats(ctx context.Context) (*Stats, error) {
	return c.ledger.Stats(ctx)
}

// RunTimeoutSweep times out overdue requests and tells each caller. A
// failed notification does not stop the others.
func (c *Coordinator) RunTimeoutSweep(ctx context.Context, now time.Time) ([]HelpRequest, error) {
	swept, err := c.ledger.SweepTimeouts(ctx, now)
	if err != nil {
		log.Printf("escalation: sweep: %v", err)
	}
	for _, req := range swept {
		log.Printf("escalation: %s timed out", req.ID)
		c.record(ctx, audit.Entry{
			ActorType: audit.ActorSystem,
			Action:    audit.ActionEscalationTimedOut, SubjectType: audit.SubjectHelpRequest, SubjectID: req.ID,
			Summary: req.Question, NewValue: string(StatusTimedOut),
		})
		if nerr := c.notifier.NotifyCallerTimedOut(ctx, req); nerr != nil {
			log.Printf("escalation: notifying caller %s about timeout of %s: %v", req.CallerID, req.ID, nerr)
		}
	}
	return swept, err
}

// Start runs a sweep immediately and then every sweep interval until ctx
// is cancelled or Stop is called. Calling Start twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		c.RunTimeoutSweep(ctx, c.now())
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunTimeoutSweep(ctx, c.now())
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Coordinator) record(ctx context.Context, e audit.Entry) {
	if c.auditor == nil {
		return
	}
	if err := c.auditor.Log(ctx, e); err != nil {
		log.Printf("escalation: audit %s %s: %v", e.Action, e.SubjectID, err)
	}
}

type nopNotifier struct{}

func (nopNotifier) NotifyHuman(context.Context, HelpRequest) error          { return nil }
func (nopNotifier) NotifyCallerResolved(context.Context, HelpRequest) error { return nil }
func (nopNotifier) NotifyCallerTimedOut(context.Context, HelpRequest) error { return nil }
