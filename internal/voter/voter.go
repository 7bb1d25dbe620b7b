// Package voter implements the Voter driver (spec.md §4.6): polls
// intentions and voter-policy overrides, invokes an external evaluator
// capability, and appends the resulting vote.
//
// Grounded on the teacher's internal/escrow/jury_client.go JuryGRPCClient:
// a thin client wrapping a call to an external judge, producing a
// boolean verdict plus a human-readable reasoning string, logged through
// a component-prefixed *log.Logger. Evaluator here stands in for the
// Python Jury service client there — same "call out, parse a verdict,
// fail closed on trouble" shape, re-pointed at an LLM safety prompt
// instead of a trust-score formula. The Chat call itself runs through
// an adapted circuit breaker (internal/circuitbreaker) so a stuck
// evaluator trips open after repeated consecutive failures instead of
// stalling every pending intention's vote on the full call timeout.
package voter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ocx/agentbus/internal/agentbuserr"
	"github.com/ocx/agentbus/internal/bus"
	"github.com/ocx/agentbus/internal/circuitbreaker"
	"github.com/ocx/agentbus/internal/payload"
)

// Evaluator is the external capability the Voter invokes per intention
// (spec.md §4.6: "chat(model, prompt) -> string | Err").
type Evaluator interface {
	Chat(ctx context.Context, model, prompt string) (string, error)
}

const defaultSafetyPrompt = "Evaluate whether the following agent intention is safe to execute. " +
	"Respond with <safe>true</safe> or <safe>false</safe>, a <reason>...</reason>, " +
	"and optionally <concerns>...</concerns>.\n\nIntention: "

var voterPollFilter = bus.NewPollFilter(payload.TypeIntention, payload.TypeVoterPolicy)

// Voter is the long-running poll/evaluate/vote loop over one bus.
type Voter struct {
	busID string
	log   bus.Log
	sleep func(ctx context.Context, d time.Duration) error

	evaluator Evaluator
	model     string
	logger    *slog.Logger
	breaker   *circuitbreaker.Breaker

	nextLogPosition uint64
	promptOverride  string
}

type Option func(*Voter)

func WithStartPosition(p uint64) Option {
	return func(v *Voter) { v.nextLogPosition = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Voter) { v.logger = l }
}

// New constructs a Voter. sleep is the environment's suspension point
// (envx.Environment.Sleep), kept as a narrow function type here so this
// package depends on neither envx nor the simulator directly.
func New(log bus.Log, sleep func(context.Context, time.Duration) error, busID, model string, evaluator Evaluator, opts ...Option) *Voter {
	cfg := circuitbreaker.DefaultConfig("voter-evaluator:" + busID)
	cfg.ReadyToTrip = func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 3 }

	v := &Voter{
		busID:     busID,
		log:       log,
		sleep:     sleep,
		evaluator: evaluator,
		model:     model,
		logger:    slog.Default(),
		breaker:   circuitbreaker.New(cfg),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run drives the main loop until ctx is cancelled. Unlike the Decider,
// no error here is fatal to the loop itself: bus errors back off and
// UnknownPayloadType simply advances (spec.md §4.6 "Failure semantics").
func (v *Voter) Run(ctx context.Context, pollInterval time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := v.log.Poll(ctx, v.busID, v.nextLogPosition, 1, voterPollFilter)
		if err != nil {
			wrapped := &agentbuserr.FailedAgentBusCall{Op: "poll", Err: err}
			v.logger.Warn("voter poll failed, backing off", "error", wrapped)
			if sleepErr := v.sleep(ctx, 5*pollInterval); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if len(result.Entries) == 0 {
			if err := v.sleep(ctx, pollInterval); err != nil {
				return err
			}
			continue
		}

		entry := result.Entries[0]
		if err := v.handle(ctx, entry); err != nil {
			var unknown *agentbuserr.UnknownPayloadType
			if errors.As(err, &unknown) {
				v.logger.Debug("voter skipping unexpected payload", "position", unknown.Position)
			} else {
				return err
			}
		}
		v.nextLogPosition = entry.Header.LogPosition + 1
	}
}

func (v *Voter) handle(ctx context.Context, entry payload.BusEntry) error {
	switch entry.Payload.Type {
	case payload.TypeIntention:
		return v.evaluateAndVote(ctx, entry)
	case payload.TypeVoterPolicy:
		v.promptOverride = entry.Payload.VoterPolicy.PromptOverride
		return nil
	default:
		return &agentbuserr.UnknownPayloadType{Position: entry.Header.LogPosition}
	}
}

func (v *Voter) evaluateAndVote(ctx context.Context, entry payload.BusEntry) error {
	prompt := v.buildPrompt(entry.Payload.Intention.Body)

	result, err := v.breaker.ExecuteContext(ctx, func(ctx context.Context) (any, error) {
		return v.evaluator.Chat(ctx, v.model, prompt)
	})
	var raw string
	if err == nil {
		raw = result.(string)
	}
	if err != nil {
		vote := payload.NewVote(entry.Header.LogPosition, false, &payload.ExternalLlmVoteInfo{
			Reason: (&agentbuserr.LlmCallFailed{Msg: err.Error()}).Error(),
			Model:  v.model,
		})
		_, proposeErr := v.log.Propose(ctx, v.busID, vote)
		return proposeErr
	}

	verdict, reason := parseVerdict(raw)
	vote := payload.NewVote(entry.Header.LogPosition, verdict, &payload.ExternalLlmVoteInfo{
		Reason: reason,
		Model:  v.model,
	})
	_, err = v.log.Propose(ctx, v.busID, vote)
	return err
}

// buildPrompt combines the voter-policy override (if any) with the
// default safety prompt rather than replacing it, so the <safe>/
// <reason> response-format instructions always reach the evaluator
// (spec.md §4.6 "combines the optional prompt_override with a default
// safety prompt").
func (v *Voter) buildPrompt(intentionBody string) string {
	base := defaultSafetyPrompt
	if v.promptOverride != "" {
		base = defaultSafetyPrompt + "\n\nOVERRIDE: " + v.promptOverride + "\n\n"
	}
	return base + intentionBody
}

// parseVerdict extracts <safe>, <reason>, and <concerns> from an
// XML-like evaluator response, folding any concerns into the reason
// (spec.md §4.6). A missing <safe> tag fails closed to false.
func parseVerdict(raw string) (safe bool, reason string) {
	safeText, ok := extractTag(raw, "safe")
	if !ok {
		return false, "missing <safe> tag in evaluator response"
	}
	safe = strings.TrimSpace(strings.ToLower(safeText)) == "true"

	if reasonText, ok := extractTag(raw, "reason"); ok {
		reason = strings.TrimSpace(reasonText)
	}

	if concernsText, ok := extractTag(raw, "concerns"); ok {
		concerns := strings.TrimSpace(concernsText)
		if concerns != "" && !strings.EqualFold(concerns, "none") {
			reason = reason + ". Concerns: " + concerns
		}
	}
	return safe, reason
}

func extractTag(raw, tag string) (string, bool) {
	open := "<" + tag + ">"
	shut := "</" + tag + ">"
	start := strings.Index(raw, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(raw[start:], shut)
	if end < 0 {
		return "", false
	}
	return raw[start : start+end], true
}
