package bots

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

// Service is the escalation surface supervisors drive from chat.
type Service interface {
	Search(ctx context.Context, question string) (*escalation.SearchResponse, error)
	ListPending(ctx context.Context) ([]escalation.HelpRequest, error)
	Stats(ctx context.Context) (*escalation.Stats, error)
	Claim(ctx context.Context, id, resolverID string) (*escalation.HelpRequest, error)
	Resolve(ctx context.Context, id, response, resolverID string) (*escalation.ResolveResult, error)
}

// maxListed caps the pending queue shown in one chat reply.
const maxListed = 10

const usage = "Commands:\n" +
	"- pending: list open help requests\n" +
	"- claim <id>: take a request\n" +
	"- answer <id> <text>: resolve a request and teach the knowledge base\n" +
	"- ask <question>: look a question up\n" +
	"- stats: request counts"

// Processor turns supervisor chat messages into escalation operations.
type Processor struct {
	svc Service
}

// NewProcessor creates a new message processor.
func NewProcessor(svc Service) *Processor {
	return &Processor{svc: svc}
}

// HandleMessage processes an incoming message and returns a response.
// The first word selects the command:
//   - "pending" or "queue" lists open requests
//   - "claim <id>" marks a request as being handled
//   - "answer <id> <text>" or "resolve <id> <text>" resolves it
//   - "ask <question>" or "?question" searches the knowledge base
//   - "stats" reports counts per status
//
// Anything else gets the usage text. Command failures are reported in the
// reply rather than as an error.
func (p *Processor) HandleMessage(ctx context.Context, msg IncomingMessage) (*OutgoingMessage, error) {
	text := stripMention(strings.TrimSpace(msg.Text))
	reply := func(s string) *OutgoingMessage {
		return &OutgoingMessage{ChannelID: msg.ChannelID, ThreadID: msg.ThreadID, Text: s}
	}
	if text == "" {
		return reply("I received an empty message.\n" + usage), nil
	}

	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	var responseText string
	var err error

	switch strings.ToLower(cmd) {
	case "pending", "queue":
		responseText, err = p.handlePending(ctx)
	case "claim":
		responseText, err = p.handleClaim(ctx, msg, rest)
	case "answer", "resolve":
		responseText, err = p.handleAnswer(ctx, msg, rest)
	case "ask":
		responseText, err = p.handleAsk(ctx, rest)
	case "stats":
		responseText, err = p.handleStats(ctx)
	case "help":
		responseText = usage
	default:
		if strings.HasPrefix(text, "?") {
			responseText, err = p.handleAsk(ctx, strings.TrimSpace(text[1:]))
		} else {
			responseText = "Sorry, I didn't understand that.\n" + usage
		}
	}

	if err != nil {
		log.Printf("bots: %s command from %s: %v", cmd, msg.UserID, err)
		return reply(fmt.Sprintf("Error processing your message: %v", err)), nil
	}
	return reply(responseText), nil
}

func (p *Processor) handlePending(ctx context.Context) (string, error) {
	reqs, err := p.svc.ListPending(ctx)
	if err != nil {
		return "", err
	}
	if len(reqs) == 0 {
		return "No pending help requests.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d pending help requests:\n", len(reqs))
	for i, r := range reqs {
		if i == maxListed {
			fmt.Fprintf(&b, "...and %d more\n", len(reqs)-maxListed)
			break
		}
		fmt.Fprintf(&b, "- %s [%s] %s (caller %s)\n", r.ID, r.Status, r.Question, callerOf(r))
	}
	return b.String(), nil
}

func (p *Processor) handleClaim(ctx context.Context, msg IncomingMessage, rest string) (string, error) {
	id := strings.Fields(rest)
	if len(id) == 0 {
		return "Usage: claim <id>", nil
	}
	req, err := p.svc.Claim(ctx, id[0], resolverOf(msg))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("You are handling %s: %s", req.ID, req.Question), nil
}

func (p *Processor) handleAnswer(ctx context.Context, msg IncomingMessage, rest string) (string, error) {
	id, answer, _ := strings.Cut(rest, " ")
	answer = strings.TrimSpace(answer)
	if id == "" || answer == "" {
		return "Usage: answer <id> <text>", nil
	}
	res, err := p.svc.Resolve(ctx, id, answer, resolverOf(msg))
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("Resolved %s. The caller has been sent your answer.", res.Request.ID)
	if res.LearnErr != nil {
		text += "\nThe answer could not be added to the knowledge base."
	}
	return text, nil
}

func (p *Processor) handleAsk(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "Usage: ask <question>", nil
	}
	res, err := p.svc.Search(ctx, question)
	if err != nil {
		return "", err
	}
	if !res.Found {
		return fmt.Sprintf("No answer in the knowledge base (best score %.2f).", res.Score), nil
	}
	return fmt.Sprintf("%s\n(category %s, matched by %s)", res.Answer, res.Category, res.Stage), nil
}

func (p *Processor) handleStats(ctx context.Context) (string, error) {
	s, err := p.svc.Stats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Total %d: %d pending, %d in progress, %d resolved, %d timed out",
		s.Total, s.Pending, s.InProgress, s.Resolved, s.TimedOut), nil
}

// resolverOf names the supervisor behind a chat message.
func resolverOf(msg IncomingMessage) string {
	if msg.UserName != "" {
		return fmt.Sprintf("%s:%s", msg.Platform, msg.UserName)
	}
	return fmt.Sprintf("%s:%s", msg.Platform, msg.UserID)
}

func callerOf(r escalation.HelpRequest) string {
	if r.CallerName != "" {
		return r.CallerName
	}
	return r.CallerID
}

// stripMention drops a leading Slack "<@U123>" or Teams "<at>bot</at>" mention.
func stripMention(text string) string {
	switch {
	case strings.HasPrefix(text, "<@"):
		if i := strings.Index(text, ">"); i >= 0 {
			return strings.TrimSpace(text[i+1:])
		}
	case strings.HasPrefix(text, "<at>"):
		if i := strings.Index(text, "</at>"); i >= 0 {
			return strings.TrimSpace(text[i+len("</at>"):])
		}
	}
	return text
}
