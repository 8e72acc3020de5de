package escalation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
)

// TestLedgerTransitionsProperty drives random operation sequences against
// the ledger and checks that a request leaves the open states at most once,
// that closed requests never change, and that resolved_at is set exactly
// for resolved requests.
func TestLedgerTransitionsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		database, err := db.OpenMemory()
		if err != nil {
			rt.Fatalf("OpenMemory: %v", err)
		}
		defer database.Close()

		clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		l := NewLedger(database, 30*time.Minute)
		l.now = clock.Now
		ctx := context.Background()

		n := rapid.IntRange(1, 4).Draw(rt, "requests")
		ids := make([]string, n)
		for i := range ids {
			req, err := l.Create(ctx, CreateInput{Question: "Q?", CallerID: "c", SessionID: fmt.Sprintf("s%d", i)})
			if err != nil {
				rt.Fatalf("Create: %v", err)
			}
			ids[i] = req.ID
		}

		closed := map[string]HelpRequest{}
		transitions := map[string]int{}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			op := rapid.SampledFrom([]string{"resolve", "claim", "sweep", "advance"}).Draw(rt, "op")
			id := ids[rapid.IntRange(0, n-1).Draw(rt, "target")]

			switch op {
			case "resolve":
				_, err := l.Resolve(ctx, id, "answer", "sup")
				if err == nil {
					transitions[id]++
				} else if !errors.Is(err, apperr.ErrInvalidState) {
					rt.Fatalf("Resolve: %v", err)
				}
			case "claim":
				_, err := l.Claim(ctx, id, "sup")
				if err != nil && !errors.Is(err, apperr.ErrInvalidState) {
					rt.Fatalf("Claim: %v", err)
				}
			case "sweep":
				swept, err := l.SweepTimeouts(ctx, clock.Now())
				if err != nil {
					rt.Fatalf("SweepTimeouts: %v", err)
				}
				for _, r := range swept {
					transitions[r.ID]++
				}
			case "advance":
				clock.Advance(time.Duration(rapid.IntRange(1, 20).Draw(rt, "minutes")) * time.Minute)
			}

			for _, id := range ids {
				got, err := l.Get(ctx, id)
				if err != nil {
					rt.Fatalf("Get: %v", err)
				}
				if (got.Status == StatusResolved) != (got.ResolvedAt != nil) {
					rt.Fatalf("%s: status %s with resolved_at %v", id, got.Status, got.ResolvedAt)
				}
				if transitions[id] > 1 {
					rt.Fatalf("%s left the open states %d times", id, transitions[id])
				}
				if prev, ok := closed[id]; ok {
					if prev.Status != got.Status || prev.HumanResponse != got.HumanResponse {
						rt.Fatalf("%s changed after closing: %s -> %s", id, prev.Status, got.Status)
					}
				} else if !got.Status.Open() {
					closed[id] = *got
				}
			}
		}
	})
}
