// Package ledger implements the session ledger: the token balance, donations,
// conversation history and ecological metrics of one sentinel session, and
// the operations that mutate them.
//
// All state changes go through Ledger methods. Reads return copies, so a
// Snapshot never observes a half-applied exchange.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/llm/provider"
)

// Classifier picks the tier a request needs.
type Classifier interface {
	Classify(ctx context.Context, text string) (economics.Tier, error)
}

// Responder produces the reply to a request.
type Responder interface {
	Reply(ctx context.Context, history []provider.Message, prompt string, tier economics.Tier) (string, error)
}

// Observer receives exchange events. pkg/observability.Metrics implements it.
type Observer interface {
	RecordExchange(tier, outcome string, duration time.Duration)
	RecordClassification(tier, source string)
}

// Message is one history entry.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Tier      economics.Tier `json:"tierUsed,omitempty"`
}

// Metrics are the ecological counters of a session. Energy and water are not
// stored; Snapshot derives them from TokensUsed.
type Metrics struct {
	TokensUsed       int     `json:"tokensUsed"`
	Biodiversity     float64 `json:"biodiversityImpactScore"`
	FinancialBenefit float64 `json:"financialBenefit"`
}

// Options configures a new ledger. Zero values take the economics defaults.
type Options struct {
	InitialTokens int
	InitialTier   economics.Tier
	AutoMode      bool
	TokenPriceUSD float64
	Observer      Observer
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Ledger is one session's accounting state. It is safe for concurrent use,
// but admits a single exchange at a time.
type Ledger struct {
	id         string
	classifier Classifier
	responder  Responder
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
	price      float64

	// inflight is the single-flight guard; an exchange holds it from
	// admission until its outcome is committed.
	inflight *semaphore.Weighted
	busy     atomic.Bool

	mu             sync.RWMutex
	started        bool
	tokens         int
	donated        float64
	history        []Message
	tier           economics.Tier
	autoMode       bool
	metrics        Metrics
	pendingRequest string
}

// New creates a ledger with a fresh session's defaults.
func New(classifier Classifier, responder Responder, opts Options) *Ledger {
	if opts.InitialTokens <= 0 {
		opts.InitialTokens = economics.InitialTokenGrant
	}
	if !opts.InitialTier.Valid() {
		opts.InitialTier = economics.Medium
	}
	// A zero price is the unset value; config validation rejects it upstream.
	if opts.TokenPriceUSD <= 0 {
		opts.TokenPriceUSD = economics.TokenPriceUSD
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	id := uuid.NewString()
	return &Ledger{
		id:         id,
		classifier: classifier,
		responder:  responder,
		observer:   opts.Observer,
		logger:     opts.Logger.With("session_id", id),
		now:        opts.Clock,
		price:      opts.TokenPriceUSD,
		inflight:   semaphore.NewWeighted(1),
		tokens:     opts.InitialTokens,
		tier:       opts.InitialTier,
		autoMode:   opts.AutoMode,
		metrics: Metrics{
			Biodiversity: economics.InitialBiodiversityScore,
		},
	}
}

// ID returns the session identifier.
func (l *Ledger) ID() string {
	return l.id
}

// PricePerToken is the donation asked per replenished token.
func (l *Ledger) PricePerToken() float64 {
	return l.price
}

// StartSession sets the active tier and marks the session started. A non-empty
// initialRequest is held for one dispatch through DispatchPending. It reports
// false, changing nothing, for an unknown tier.
func (l *Ledger) StartSession(tier economics.Tier, initialRequest string) bool {
	if !tier.Valid() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tier = tier
	l.started = true
	l.pendingRequest = trimRequest(initialRequest)
	l.logger.Info("session started", "tier", tier, "pending_request", l.pendingRequest != "")
	return true
}

// Replenish adds amount tokens and records the matching donation at
// pricePerToken. A non-positive amount or negative price is ignored.
func (l *Ledger) Replenish(amount int, pricePerToken float64) bool {
	if amount <= 0 || pricePerToken < 0 {
		l.logger.Debug("replenish rejected", "amount", amount, "price", pricePerToken)
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens += amount
	l.donated += economics.Donation(amount, pricePerToken)
	l.logger.Info("tokens replenished", "amount", amount, "tokens_remaining", l.tokens, "total_donated", l.donated)
	return true
}

// SetTier selects the active tier manually. It is refused while auto mode is on.
func (l *Ledger) SetTier(tier economics.Tier) bool {
	if !tier.Valid() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.autoMode {
		l.logger.Debug("manual tier refused in auto mode", "tier", tier)
		return false
	}
	l.tier = tier
	return true
}

// ToggleAutoMode flips auto classification and returns the new setting.
func (l *Ledger) ToggleAutoMode() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoMode = !l.autoMode
	return l.autoMode
}

// Busy reports whether an exchange is in flight.
func (l *Ledger) Busy() bool {
	return l.busy.Load()
}
