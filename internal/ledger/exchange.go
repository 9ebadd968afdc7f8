package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/llm/provider"
	"github.com/ecoai/sentinel/internal/observability"
)

// UnavailableNotice is the model message recorded when a reply cannot be
// generated.
const UnavailableNotice = "SYSTEM ERROR: SENTINEL UNAVAILABLE. PLEASE RETRY."

// Outcome is how a submitted exchange ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeEmpty     Outcome = "rejected_empty"
	OutcomeNoTokens  Outcome = "rejected_no_tokens"
	OutcomeBusy      Outcome = "busy"
)

// Rejected reports whether the exchange was refused without touching history.
func (o Outcome) Rejected() bool {
	return o == OutcomeEmpty || o == OutcomeNoTokens || o == OutcomeBusy
}

// Result describes one Submit call. Cost is the tokens charged and is zero
// unless the exchange completed.
type Result struct {
	Outcome Outcome        `json:"outcome"`
	Tier    economics.Tier `json:"tier,omitempty"`
	Cost    int            `json:"cost"`
	Reply   string         `json:"reply,omitempty"`
}

// Submit runs one exchange for text. Rejections are reported in the result,
// never as errors; a generation failure is recorded in history and costs
// nothing.
func (l *Ledger) Submit(ctx context.Context, text string) Result {
	start := time.Now()
	text = trimRequest(text)
	if text == "" {
		return l.reject(OutcomeEmpty)
	}
	if !l.acquire() {
		return l.reject(OutcomeBusy)
	}
	defer l.release()

	l.mu.Lock()
	if l.tokens <= 0 {
		l.mu.Unlock()
		return l.reject(OutcomeNoTokens)
	}
	l.pendingRequest = ""
	t := l.admitLocked(text, false)
	l.mu.Unlock()

	return l.run(ctx, t, start)
}

// DispatchPending takes the pending initial request and submits it without
// auto classification. The request is only taken once the exchange is
// admitted: while another exchange is in flight, or the balance is empty, it
// stays pending and DispatchPending reports false with the rejection outcome.
func (l *Ledger) DispatchPending(ctx context.Context) (Result, bool) {
	start := time.Now()
	l.mu.Lock()
	pending := l.pendingRequest != ""
	l.mu.Unlock()
	if !pending {
		return Result{}, false
	}

	if !l.acquire() {
		return l.reject(OutcomeBusy), false
	}
	defer l.release()

	l.mu.Lock()
	text := l.pendingRequest
	if text == "" {
		l.mu.Unlock()
		return Result{}, false
	}
	if l.tokens <= 0 {
		l.mu.Unlock()
		return l.reject(OutcomeNoTokens), false
	}
	l.pendingRequest = ""
	t := l.admitLocked(text, true)
	l.mu.Unlock()

	return l.run(ctx, t, start), true
}

// turn is an admitted exchange: the request and the state it was admitted
// against.
type turn struct {
	text     string
	tier     economics.Tier
	auto     bool
	replayed bool
	history  []provider.Message
}

func (l *Ledger) acquire() bool {
	if !l.inflight.TryAcquire(1) {
		return false
	}
	l.busy.Store(true)
	return true
}

func (l *Ledger) release() {
	l.busy.Store(false)
	l.inflight.Release(1)
}

// admitLocked captures the exchange inputs. l.mu must be held.
func (l *Ledger) admitLocked(text string, replayed bool) turn {
	history := make([]provider.Message, 0, len(l.history))
	for _, m := range l.history {
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}
	return turn{
		text:     text,
		tier:     l.tier,
		auto:     l.autoMode && !replayed,
		replayed: replayed,
		history:  history,
	}
}

// run executes an admitted exchange. The caller holds the in-flight guard.
func (l *Ledger) run(ctx context.Context, t turn, start time.Time) Result {
	text, tier, history := t.text, t.tier, t.history

	ctx, span := observability.StartSpan(ctx, "ledger.exchange", map[string]any{
		"session.id":      l.id,
		"exchange.auto":   t.auto,
		"exchange.replay": t.replayed,
	})
	defer span.End()

	if t.auto {
		tier = l.classify(ctx, text, tier)
	}
	span.SetAttributes(observability.Attribute("exchange.tier", tier))

	requestCost := economics.EstimateTokens(text, tier)
	userMsg := l.message(provider.RoleUser, text, tier)

	reply, err := l.responder.Reply(ctx, history, text, tier)
	if err != nil {
		span.RecordError(err)
		l.logger.Error("reply generation failed", "tier", tier, "error", err)

		l.mu.Lock()
		l.history = append(l.history, userMsg, l.message(provider.RoleModel, UnavailableNotice, tier))
		l.mu.Unlock()

		l.record(tier, OutcomeFailed, time.Since(start))
		return Result{Outcome: OutcomeFailed, Tier: tier}
	}

	cost := requestCost + economics.EstimateTokens(reply, tier)
	modelMsg := l.message(provider.RoleModel, reply, tier)

	l.mu.Lock()
	l.history = append(l.history, userMsg, modelMsg)
	l.tokens = max(0, l.tokens-cost)
	l.metrics.TokensUsed += cost
	l.metrics.FinancialBenefit += economics.Benefit(tier)
	l.metrics.Biodiversity = economics.ClampScore(l.metrics.Biodiversity - economics.BiodiversityDelta(cost, tier))
	remaining := l.tokens
	l.mu.Unlock()

	span.SetAttributes(observability.Attribute("exchange.cost", cost))
	l.logger.Info("exchange committed", "tier", tier, "cost", cost, "tokens_remaining", remaining)
	l.record(tier, OutcomeCompleted, time.Since(start))
	return Result{Outcome: OutcomeCompleted, Tier: tier, Cost: cost, Reply: reply}
}

// classify asks the classifier for a tier, committing it as the active tier.
// On failure the prior tier is kept.
func (l *Ledger) classify(ctx context.Context, text string, prior economics.Tier) economics.Tier {
	tier, err := l.classifier.Classify(ctx, text)
	if err != nil || !tier.Valid() {
		l.logger.Warn("classification failed, keeping active tier", "tier", prior, "error", err)
		if l.observer != nil {
			l.observer.RecordClassification(prior.String(), "fallback")
		}
		return prior
	}

	l.mu.Lock()
	l.tier = tier
	l.mu.Unlock()
	return tier
}

func (l *Ledger) reject(outcome Outcome) Result {
	l.logger.Debug("exchange rejected", "reason", outcome)
	l.record("", outcome, 0)
	return Result{Outcome: outcome}
}

func (l *Ledger) record(tier economics.Tier, outcome Outcome, d time.Duration) {
	if l.observer == nil {
		return
	}
	label := tier.String()
	if label == "" {
		label = "none"
	}
	l.observer.RecordExchange(label, string(outcome), d)
}

func (l *Ledger) message(role, content string, tier economics.Tier) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: l.now(),
		Tier:      tier,
	}
}

func trimRequest(s string) string {
	return strings.TrimSpace(s)
}
