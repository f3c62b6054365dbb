package flow

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/betledger/internal/matching"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

// Step is the input a session is waiting for.
type Step string

const (
	StepOutcome Step = "outcome"
	StepTarget  Step = "target"
	StepRisk    Step = "risk"
	StepAsk     Step = "ask"
	StepConfirm Step = "confirm"
)

// Session is one participant's in-progress offer on one market. It lives
// only in memory and never touches the ledger until Confirm.
type Session struct {
	ID          string    `json:"id"`
	MarketID    int64     `json:"market_id"`
	Participant string    `json:"participant"`
	Step        Step      `json:"step"`
	Outcomes    []string  `json:"outcomes"`
	Outcome     string    `json:"outcome,omitempty"`
	Target      string    `json:"target,omitempty"`
	OfferAmount float64   `json:"offer_amount,omitempty"`
	AskAmount   float64   `json:"ask_amount,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// MarketReader loads the current state of a market.
type MarketReader interface {
	GetMarket(ctx context.Context, marketID int64) (types.Market, error)
}

// OfferPlacer places a fully collected offer.
type OfferPlacer interface {
	CreateOffer(ctx context.Context, req matching.OfferRequest) (types.BetOffer, error)
}

type sessionKey struct {
	marketID    int64
	participant string
}

// Manager tracks offer conversations. Each (market, participant) pair has at
// most one session; starting again replaces the previous one.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byKey    map[sessionKey]string

	markets MarketReader
	offers  OfferPlacer
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// Config holds offer flow configuration.
type Config struct {
	Markets MarketReader
	Offers  OfferPlacer
	Timeout time.Duration    // Idle time allowed per step
	Clock   func() time.Time // Optional, defaults to time.Now
	Logger  *zap.Logger
}

// New creates a new flow manager.
func New(cfg *Config) *Manager {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Manager{
		sessions: make(map[string]*Session),
		byKey:    make(map[sessionKey]string),
		markets:  cfg.Markets,
		offers:   cfg.Offers,
		timeout:  timeout,
		now:      clock,
		logger:   cfg.Logger,
	}
}

// Start opens a conversation for participant on an open market.
func (m *Manager) Start(ctx context.Context, marketID int64, participant string) (Session, error) {
	const op = "start-offer-flow"

	participant = strings.TrimSpace(participant)
	if participant == "" {
		return Session{}, types.Validationf(op, "participant must not be blank")
	}

	market, err := m.markets.GetMarket(ctx, marketID)
	if err != nil {
		return Session{}, err
	}
	if !market.IsOpen() {
		return Session{}, types.Statef(op, "market %d is %s", marketID, market.Status)
	}

	s := &Session{
		ID:          uuid.NewString(),
		MarketID:    marketID,
		Participant: participant,
		Step:        StepOutcome,
		Outcomes:    market.Outcomes,
		ExpiresAt:   m.now().Add(m.timeout),
	}

	m.mu.Lock()
	key := sessionKey{marketID: marketID, participant: participant}
	if previous, ok := m.byKey[key]; ok {
		delete(m.sessions, previous)
		ActiveSessions.Dec()
	}
	m.sessions[s.ID] = s
	m.byKey[key] = s.ID
	ActiveSessions.Inc()
	m.mu.Unlock()

	SessionsStartedTotal.Inc()
	m.logger.Debug("offer-flow-started",
		zap.String("session-id", s.ID),
		zap.Int64("market-id", marketID),
		zap.String("participant", participant))

	return *s, nil
}

// ChooseOutcome records the outcome, by name or by 1-based position. The
// market is re-read so a market closed meanwhile is reported immediately.
func (m *Manager) ChooseOutcome(ctx context.Context, sessionID string, participant string, choice string) (Session, error) {
	const op = "choose-outcome"

	snapshot, err := m.peek(op, sessionID, participant, StepOutcome)
	if err != nil {
		return Session{}, err
	}

	market, err := m.markets.GetMarket(ctx, snapshot.MarketID)
	if err != nil {
		return Session{}, err
	}
	if !market.IsOpen() {
		m.discard(sessionID)
		return Session{}, types.Statef(op, "market %d is %s", market.ID, market.Status)
	}

	outcome, ok := pickOutcome(market.Outcomes, choice)
	if !ok {
		return Session{}, types.Validationf(op, "%q is not an outcome of market %d", choice, market.ID)
	}

	return m.advance(op, sessionID, participant, StepOutcome, func(s *Session) {
		s.Outcome = outcome
		s.Outcomes = market.Outcomes
		s.Step = StepTarget
	})
}

// ChooseTarget restricts who may accept. An empty target leaves the offer
// open to anyone.
func (m *Manager) ChooseTarget(sessionID string, participant string, target string) (Session, error) {
	const op = "choose-target"

	target = strings.TrimSpace(target)
	if target != "" && target == strings.TrimSpace(participant) {
		return Session{}, types.Validationf(op, "an offer cannot target its own bettor")
	}

	return m.advance(op, sessionID, participant, StepTarget, func(s *Session) {
		s.Target = target
		s.Step = StepRisk
	})
}

// SetRisk records how much the participant risks.
func (m *Manager) SetRisk(sessionID string, participant string, amount float64) (Session, error) {
	const op = "set-risk"

	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return Session{}, types.Validationf(op, "risk must be a positive amount")
	}

	return m.advance(op, sessionID, participant, StepRisk, func(s *Session) {
		s.OfferAmount = amount
		s.Step = StepAsk
	})
}

// SetAsk records how much the participant wants to win. Zero is a free bet.
func (m *Manager) SetAsk(sessionID string, participant string, amount float64) (Session, error) {
	const op = "set-ask"

	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return Session{}, types.Validationf(op, "ask must be zero or a positive amount")
	}

	return m.advance(op, sessionID, participant, StepAsk, func(s *Session) {
		s.AskAmount = amount
		s.Step = StepConfirm
	})
}

// Confirm places the collected offer. The session ends whether or not the
// ledger accepts it.
func (m *Manager) Confirm(ctx context.Context, sessionID string, participant string) (types.BetOffer, error) {
	const op = "confirm-offer"

	snapshot, err := m.peek(op, sessionID, participant, StepConfirm)
	if err != nil {
		return types.BetOffer{}, err
	}
	m.discard(sessionID)

	offer, err := m.offers.CreateOffer(ctx, matching.OfferRequest{
		MarketID:    snapshot.MarketID,
		Bettor:      snapshot.Participant,
		Outcome:     snapshot.Outcome,
		OfferAmount: snapshot.OfferAmount,
		AskAmount:   snapshot.AskAmount,
		Target:      snapshot.Target,
	})
	if err != nil {
		return types.BetOffer{}, err
	}

	SessionsConfirmedTotal.Inc()
	return offer, nil
}

// Cancel abandons a session.
func (m *Manager) Cancel(sessionID string, participant string) error {
	const op = "cancel-offer-flow"

	_, err := m.peek(op, sessionID, participant, "")
	if err != nil {
		return err
	}

	m.discard(sessionID)
	SessionsCancelledTotal.Inc()
	return nil
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return Session{}, false
	}
	return *s, true
}

// Sweep discards expired sessions and returns how many it removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Before(s.ExpiresAt) {
			continue
		}
		m.removeLocked(id)
		removed++
	}

	if removed > 0 {
		SessionsExpiredTotal.Add(float64(removed))
		m.logger.Debug("offer-flow-sessions-expired", zap.Int("count", removed))
	}

	return removed
}

// Run sweeps expired sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(m.timeout/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// peek validates ownership and step and returns a copy of the session.
// An empty step matches any step.
func (m *Manager) peek(op string, sessionID string, participant string, step Step) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookupLocked(op, sessionID, participant, step)
	if err != nil {
		return Session{}, err
	}
	return *s, nil
}

// advance applies fn to a live session and extends its deadline.
func (m *Manager) advance(op string, sessionID string, participant string, step Step, fn func(s *Session)) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookupLocked(op, sessionID, participant, step)
	if err != nil {
		return Session{}, err
	}

	fn(s)
	s.ExpiresAt = m.now().Add(m.timeout)
	return *s, nil
}

func (m *Manager) lookupLocked(op string, sessionID string, participant string, step Step) (*Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, types.NotFoundf(op, "session %s does not exist", sessionID)
	}
	if !m.now().Before(s.ExpiresAt) {
		m.removeLocked(sessionID)
		SessionsExpiredTotal.Inc()
		return nil, types.NotFoundf(op, "session %s expired", sessionID)
	}
	if s.Participant != strings.TrimSpace(participant) {
		return nil, types.Unauthorizedf(op, "session %s belongs to another participant", sessionID)
	}
	if step != "" && s.Step != step {
		return nil, types.Statef(op, "session %s is waiting for %s, not %s", sessionID, s.Step, step)
	}
	return s, nil
}

func (m *Manager) discard(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(sessionID)
}

func (m *Manager) removeLocked(sessionID string) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	delete(m.sessions, sessionID)
	key := sessionKey{marketID: s.MarketID, participant: s.Participant}
	if m.byKey[key] == sessionID {
		delete(m.byKey, key)
	}
	ActiveSessions.Dec()
}

func pickOutcome(outcomes []string, choice string) (string, bool) {
	choice = strings.TrimSpace(choice)
	for _, o := range outcomes {
		if o == choice {
			return o, true
		}
	}

	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(outcomes) {
		return "", false
	}
	return outcomes[n-1], true
}
